// Package testutil provides generators and fixtures shared by tests:
// registered test identities, signed payloads with controllable
// metadata, protocol configurations tuned for fast test runs, and an
// in-process verifier stack.
//
// The helpers follow a functional options pattern so tests state only
// the fields they care about:
//
//	cfg := testutil.NewTestConfig(
//	    testutil.WithFreshnessWindow(time.Second),
//	    testutil.WithMaxImageSize(1024),
//	)
package testutil
