// Package feed generates and stores prices on the server side.
//
// The Generator moves every instrument by a bounded random step on each
// interval, stores the new points in a Repository and publishes them as
// price updates. The Service answers ticker and history queries.
package feed
