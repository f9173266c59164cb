package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
	"github.com/anirbankanungoe/IoT-Blockchain/transport"
)

// FrameSource produces one image per call. Implementations wrap a
// camera, a file directory, or a synthetic generator.
type FrameSource interface {
	NextFrame(ctx context.Context) ([]byte, error)
}

// Session identifies one capture run end to end; both sides carry the
// request id through every message of the stream.
type Session struct {
	RequestID      string
	RequesterEmail string
}

// Sender drives a capture session: a start message, one metadata frame
// plus raw body per image at the configured interval until the capture
// duration elapses, then an end message with the image count.
type Sender struct {
	channel transport.Channel
	source  FrameSource
	cfg     *protocol.Config
	log     *slog.Logger
}

// NewSender creates a sender streaming frames from source over channel.
func NewSender(channel transport.Channel, source FrameSource, cfg *protocol.Config, log *slog.Logger) *Sender {
	return &Sender{channel: channel, source: source, cfg: cfg, log: log}
}

// Run executes one capture session and returns the number of images
// sent. The first image is captured immediately; subsequent captures
// follow at the capture interval. Cancelling ctx ends the session early
// but still sends the end message with the count so far.
func (s *Sender) Run(ctx context.Context, session Session) (int, error) {
	start := time.Now()
	s.log.Info("capture session starting",
		"request_id", session.RequestID,
		"duration", s.cfg.CaptureDuration,
		"interval", s.cfg.CaptureInterval,
	)

	err := s.channel.Send(&protocol.StartMessage{
		Type:           protocol.TypeStart,
		RequestID:      session.RequestID,
		RequesterEmail: session.RequesterEmail,
		Timestamp:      start.Unix(),
	})
	if err != nil {
		return 0, fmt.Errorf("sending stream start: %w", err)
	}

	ticker := time.NewTicker(s.cfg.CaptureInterval)
	defer ticker.Stop()
	deadline := start.Add(s.cfg.CaptureDuration)

	sent := 0
	for cancelled := false; !cancelled && time.Now().Before(deadline); {
		if err := s.sendImage(ctx, session, sent+1); err != nil {
			return sent, err
		}
		sent++

		select {
		case <-ctx.Done():
			cancelled = true
		case <-ticker.C:
		}
	}

	err = s.channel.Send(&protocol.EndMessage{
		Type:        protocol.TypeEnd,
		RequestID:   session.RequestID,
		TotalImages: sent,
		Timestamp:   time.Now().Unix(),
	})
	if err != nil {
		return sent, fmt.Errorf("sending stream end: %w", err)
	}

	s.log.Info("capture session complete", "request_id", session.RequestID, "images", sent)
	return sent, nil
}

func (s *Sender) sendImage(ctx context.Context, session Session, number int) error {
	frame, err := s.source.NextFrame(ctx)
	if err != nil {
		return fmt.Errorf("capturing image %d: %w", number, err)
	}

	meta := &protocol.ImageMetadata{
		Type:           protocol.TypeImage,
		RequestID:      session.RequestID,
		ImageNumber:    number,
		Timestamp:      time.Now().Format(time.RFC3339),
		Size:           len(frame),
		RequesterEmail: session.RequesterEmail,
	}
	if err := s.channel.Send(meta); err != nil {
		return fmt.Errorf("sending image %d metadata: %w", number, err)
	}
	if err := s.channel.SendBinary(frame); err != nil {
		return fmt.Errorf("sending image %d body: %w", number, err)
	}

	s.log.Debug("image sent", "request_id", session.RequestID, "image_number", number, "size", len(frame))
	return nil
}
