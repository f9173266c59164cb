// Command capture runs a capture node: it registers its key with the
// verifier, listens for incoming connections, authenticates each peer
// with the connect-time handshake, and streams images when commanded.
//
// # Configuration File
//
//	service_id: "camera-node"
//	key_file: "camera.key"
//	listen_addr: ":9000"
//	verifier_url: "http://localhost:8080"
//	protocol:
//	  capture_duration: 2m
//	  capture_interval: 10s
//
// # Usage
//
//	go run ./cmd/capture --config=capture.yaml
//	go run ./cmd/capture --listen=:9000 --verifier-url=http://localhost:8080
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
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
		listenAddr  = flag.String("listen", "", "Socket listen address")
		verifierURL = flag.String("verifier-url", "", "Verifier service base URL")
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
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *verifierURL != "" {
		cfg.VerifierURL = *verifierURL
	}
	if *insecure {
		cfg.Insecure = true
	}
	if cfg.ServiceID == "" {
		cfg.ServiceID = "camera-node"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9000"
	}

	if err := run(cfg); err != nil {
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

func run(cfg *common.Config) error {
	log := cfg.Logger()

	signer, err := common.NewSigner(cfg, log)
	if err != nil {
		return err
	}

	var verifier transport.MessageVerifier
	if !cfg.Insecure {
		if cfg.VerifierURL == "" {
			return errors.New("verifier_url is required unless running insecure")
		}
		client := services.NewClient(cfg.ServiceID, signer.Address(), cfg.VerifierURL, log)
		if err := client.Register(); err != nil {
			return err
		}
		verifier = client
	} else {
		log.Warn("running insecure, channel authentication disabled")
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("shutting down capture node")
		cancel()
		ln.Close()
	}()

	var source stream.FrameSource = &syntheticSource{frameSize: 64 << 10}
	if cfg.ImagesDir != "" {
		source, err = newDirSource(cfg.ImagesDir)
		if err != nil {
			return err
		}
		log.Info("replaying frames from directory", "dir", cfg.ImagesDir)
	}

	node := &captureNode{
		signer:   signer,
		verifier: verifier,
		cfg:      cfg,
		source:   source,
		log:      log,
	}

	log.Info("capture node listening", "addr", cfg.ListenAddr, "service_id", cfg.ServiceID)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("accept failed", "err", err)
			continue
		}
		go node.handleConn(ctx, conn)
	}
}

type captureNode struct {
	signer   *protocol.Signer
	verifier transport.MessageVerifier
	cfg      *common.Config
	source   stream.FrameSource
	log      *slog.Logger
}

// handleConn serves one peer: handshake, one command, one stream.
func (n *captureNode) handleConn(ctx context.Context, conn net.Conn) {
	log := n.log.With("remote", conn.RemoteAddr().String())

	var channel transport.Channel
	if n.cfg.Insecure {
		channel = transport.NewPlainChannel(conn)
	} else {
		secure := transport.NewSecureChannel(conn, n.signer, n.verifier, n.cfg.Protocol, log)
		if err := secure.AcceptHandshake(); err != nil {
			log.Warn("rejected connection", "err", err)
			return
		}
		log = log.With("peer", secure.PeerID())
		channel = secure
	}
	defer channel.Close()

	raw, err := channel.Recv()
	if err != nil {
		log.Warn("reading command failed", "err", err)
		return
	}
	cmd, err := protocol.UnmarshalMessage[protocol.CaptureCommand](raw)
	if err != nil {
		log.Warn("malformed command", "err", err)
		return
	}
	if cmd.Command != protocol.CommandStartCapture {
		log.Warn("unknown command", "command", cmd.Command)
		return
	}

	sender := stream.NewSender(channel, n.source, n.cfg.Protocol, log)
	sent, err := sender.Run(ctx, stream.Session{
		RequestID:      cmd.RequestID,
		RequesterEmail: cmd.RequesterEmail,
	})
	if err != nil {
		log.Error("capture session failed", "request_id", cmd.RequestID, "images_sent", sent, "err", err)
		return
	}
}
