// Package common holds identifiers shared by the service binaries.
package common

var (
	// PackageName identifies this module in logs.
	PackageName = "iot-blockchain"

	// Version is set at build time via -ldflags.
	Version = "dev"
)
