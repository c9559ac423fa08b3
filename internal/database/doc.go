// Package database provides PostgreSQL connection pooling for the price
// feed server.
//
// When storage.driver is postgres, every generated price point is written
// to the price_points table and history requests are served from it.
package database
