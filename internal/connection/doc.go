// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns one WebSocket connection per observed subject ({ws_url}/ws/{subject})
//   - Reports state transitions: Connecting -> Open -> Closed, or Connecting -> Failed -> Closed
//   - Reconnects at a fixed interval, at most MaxReconnectAttempts times in a row
//   - Never reconnects after an owner-initiated Close
//   - Forwards every inbound frame to its Message Dispatcher
package connection
