// Package cmd provides CLI commands for the authenticated transport
// services.
//
// # Commands
//
// verifier: Central verification service holding the service registry
// and replay cache.
//
//	go run ./cmd/verifier --addr=:8080
//	go run ./cmd/verifier --config=verifier.yaml
//
// capture: Camera node that streams authenticated images on command.
//
//	go run ./cmd/capture --listen=:9000 --verifier-url=http://localhost:8080
//
// storage: Node that commands a capture session and stores the received
// stream to disk.
//
//	go run ./cmd/storage --capture-addr=localhost:9000 --verifier-url=http://localhost:8080
//
// keygen: Generates a signing key pair.
//
//	go run ./cmd/keygen --out=camera.key
//
// # Configuration
//
// All commands support YAML configuration files via the --config flag.
// Command-line flags override config file values.
//
// Example config for a capture node:
//
//	service_id: "camera-node"
//	key_file: "camera.key"
//	listen_addr: ":9000"
//	verifier_url: "http://localhost:8080"
//	protocol:
//	  capture_duration: 2m
//	  capture_interval: 10s
package cmd
