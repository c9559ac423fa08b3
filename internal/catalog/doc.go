// Package catalog keeps the set of instruments offered by the data-access
// API.
//
// Start performs a blocking initial sync, then reconciles on an interval
// and reports instruments that appeared or disappeared on Changes.
package catalog
