// Package mqtt is the report transport of a wake cycle. It wraps the
// Eclipse Paho v5 client ([paho]) behind the small synchronous contract
// the lifecycle controller drives: set an endpoint, connect with a
// client identifier, check the session, publish, poll.
//
// The client does not use autopaho. Reconnection is owned
// by the caller, which counts every failed handshake against its retry
// budget and picks a new client identifier for each attempt; a
// background reconnect loop would spend energy the budget never sees.
//
// Session loss is reported by paho's OnClientError and
// OnServerDisconnect callbacks, which run on paho's goroutines. They
// only flip atomics and signal a channel, so [Client.Connected] and
// [Client.Poll] are safe to call from the single-threaded tick loop.
package mqtt
