// Package server implements the WebSocket transport of the room chat relay.
//
// A client connects to /ws/chat/<room>/ and becomes a Session in that room.
// Each Session runs a read pump that decodes inbound frames and publishes
// them through the room Router, and a write pump that drains the Session's
// mailbox to the socket. The Hub owns the shared room Registry and Router,
// tracks live Sessions and closes them on shutdown.
//
// The implementation is organized into files for session lifecycle, the hub,
// HTTP handlers and routing, origin checks and caller identity.
package server
