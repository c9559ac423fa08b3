// Package router implements the Message Dispatcher.
//
// The Dispatcher parses inbound WebSocket frames and routes them by their
// "type" discriminator to registered handlers:
//   - price_update: {"type":"price_update","data":{"ticker_id","price","timestamp"}}
//   - error:        {"type":"error","message":"..."}
//
// Unrecognized types are dropped. The Dispatcher holds no connection state;
// the Connection Manager feeds it and owns its lifetime.
package router
