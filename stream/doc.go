// Package stream implements the image streaming session that runs over
// an authenticated channel: the capture side announces a session, sends
// each image as a metadata frame followed by the raw bytes, and closes
// with an end summary; the storage side consumes the sequence and hands
// each image to a sink.
package stream
