// Package subscription binds a selected subject to a live price stream.
//
// A Coordinator holds the consumer-facing state for at most one subject at a
// time. Observing a subject fetches its seed history, opens a stream and
// appends every price update to a bounded history. Switching subjects tears
// the previous stream down first; results that arrive for a superseded
// subject are discarded.
package subscription
