// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns one WebSocket connection to the realtime backend
//   - Runs a five-state lifecycle (connecting, connected, disconnected,
//     reconnecting, error) with exponential-backoff reconnection
//   - Sends heartbeat pings while connected and tracks pong latency
//   - Replays Subscription Registry topics on every (re)connect
//   - Parses inbound frames into envelopes for the notifier streams
//
// The TradingClient variant adds a bounded offline send queue and the
// trading-specific request frames.
package connection
