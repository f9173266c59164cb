// Package protocol defines the signed message formats exchanged between
// services: the canonical payload encoding both signer and verifier hash,
// the envelope wrapping a payload with its signature, the connect-time
// handshake frames, and the control messages of the image stream.
package protocol
