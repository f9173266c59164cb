// Command storage runs a storage node: it registers its key with the
// verifier, dials a capture node, commands a capture session, and writes
// the received image stream to disk.
//
// # Configuration File
//
//	service_id: "storage-node"
//	key_file: "storage.key"
//	capture_addr: "localhost:9000"
//	verifier_url: "http://localhost:8080"
//	output_dir: "received_images"
//
// # Usage
//
//	go run ./cmd/storage --config=storage.yaml
//	go run ./cmd/storage --capture-addr=localhost:9000 --verifier-url=http://localhost:8080
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/anirbankanungoe/IoT-Blockchain/cmd/common"
	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
	"github.com/anirbankanungoe/IoT-Blockchain/services"
	"github.com/anirbankanungoe/IoT-Blockchain/stream"
	"github.com/anirbankanungoe/IoT-Blockchain/transport"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		serviceID   = flag.String("service-id", "", "Service identity")
		captureAddr = flag.String("capture-addr", "", "Capture node address to dial")
		verifierURL = flag.String("verifier-url", "", "Verifier service base URL")
		outputDir   = flag.String("output-dir", "", "Directory for received images")
		requester   = flag.String("requester", "", "Requester email recorded in the session")
		insecure    = flag.Bool("insecure", false, "Disable channel authentication")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *serviceID != "" {
		cfg.ServiceID = *serviceID
	}
	if *captureAddr != "" {
		cfg.CaptureAddr = *captureAddr
	}
	if *verifierURL != "" {
		cfg.VerifierURL = *verifierURL
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *insecure {
		cfg.Insecure = true
	}
	if cfg.ServiceID == "" {
		cfg.ServiceID = "storage-node"
	}

	if err := run(cfg, *requester); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func run(cfg *common.Config, requester string) error {
	log := cfg.Logger()

	if cfg.CaptureAddr == "" {
		return errors.New("capture_addr is required")
	}

	signer, err := common.NewSigner(cfg, log)
	if err != nil {
		return err
	}

	var channel transport.Channel
	if cfg.Insecure {
		log.Warn("running insecure, channel authentication disabled")
		conn, err := net.Dial("tcp", cfg.CaptureAddr)
		if err != nil {
			return fmt.Errorf("dialing %s: %w", cfg.CaptureAddr, err)
		}
		channel = transport.NewPlainChannel(conn)
	} else {
		if cfg.VerifierURL == "" {
			return errors.New("verifier_url is required unless running insecure")
		}
		client := services.NewClient(cfg.ServiceID, signer.Address(), cfg.VerifierURL, log)
		if err := client.Register(); err != nil {
			return err
		}

		secure, err := transport.Dial(cfg.CaptureAddr, signer, client, cfg.Protocol, log)
		if err != nil {
			return err
		}
		channel = secure
	}
	defer channel.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("interrupted, closing channel")
		cancel()
		channel.Close()
	}()

	requestID, err := newRequestID()
	if err != nil {
		return err
	}
	log.Info("requesting capture session", "request_id", requestID, "capture_addr", cfg.CaptureAddr)

	err = channel.Send(&protocol.CaptureCommand{
		Command:        protocol.CommandStartCapture,
		RequestID:      requestID,
		RequesterEmail: requester,
	})
	if err != nil {
		return fmt.Errorf("sending capture command: %w", err)
	}

	sink, err := newDirSink(cfg.OutputDir)
	if err != nil {
		return err
	}

	receiver := stream.NewReceiver(channel, sink, cfg.Protocol, log)
	summary, err := receiver.Run(ctx)
	if err != nil {
		return fmt.Errorf("receiving stream (stored %d images): %w", summary.Images, err)
	}

	log.Info("capture session stored",
		"request_id", summary.RequestID,
		"images", summary.Images,
		"bytes", summary.Bytes,
		"output_dir", cfg.OutputDir,
	)
	return nil
}

// newRequestID generates a random session identifier.
func newRequestID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return "req-" + hex.EncodeToString(buf[:]), nil
}
