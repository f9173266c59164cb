// Package transport implements the framed socket protocol and the secure
// channel built on it: 4-byte big-endian length prefixes around JSON
// control frames, unprefixed raw bodies for bulk data, and a channel
// state machine that authenticates the connection at handshake time and
// every control frame thereafter.
package transport
