package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
	"github.com/anirbankanungoe/IoT-Blockchain/transport"
)

// ImageSink consumes one received image. Implementations write to disk,
// object storage, or memory in tests.
type ImageSink interface {
	Store(meta *protocol.ImageMetadata, data []byte) error
}

// Summary reports what one received stream contained.
type Summary struct {
	RequestID  string
	Images     int
	Bytes      int
	Declared   int // image count the end message announced
	Incomplete bool
}

// Receiver consumes one image stream from a channel, handing each image
// to the sink. Metadata arrives as a control frame; the raw body rides
// as the next frame, bounded by the size the metadata declared.
type Receiver struct {
	channel transport.Channel
	sink    ImageSink
	cfg     *protocol.Config
	log     *slog.Logger
}

// NewReceiver creates a receiver storing images into sink.
func NewReceiver(channel transport.Channel, sink ImageSink, cfg *protocol.Config, log *slog.Logger) *Receiver {
	return &Receiver{channel: channel, sink: sink, cfg: cfg, log: log}
}

// Run consumes one stream to the end message and returns its summary.
// A declared image size above the configured ceiling aborts the stream
// before any body bytes are read.
func (r *Receiver) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		raw, err := r.channel.Recv()
		if err != nil {
			summary.Incomplete = true
			return summary, fmt.Errorf("receiving stream message: %w", err)
		}

		ctrl, err := protocol.UnmarshalMessage[protocol.StreamControl](raw)
		if err != nil {
			summary.Incomplete = true
			return summary, fmt.Errorf("decoding stream message: %w", err)
		}

		switch ctrl.Type {
		case protocol.TypeStart:
			msg, err := protocol.UnmarshalMessage[protocol.StartMessage](raw)
			if err != nil {
				summary.Incomplete = true
				return summary, fmt.Errorf("decoding stream start: %w", err)
			}
			summary.RequestID = msg.RequestID
			r.log.Info("stream started", "request_id", msg.RequestID, "requester", msg.RequesterEmail)

		case protocol.TypeImage:
			meta, err := protocol.UnmarshalMessage[protocol.ImageMetadata](raw)
			if err != nil {
				summary.Incomplete = true
				return summary, fmt.Errorf("decoding image metadata: %w", err)
			}
			if err := r.receiveImage(meta, summary); err != nil {
				summary.Incomplete = true
				return summary, err
			}

		case protocol.TypeEnd:
			msg, err := protocol.UnmarshalMessage[protocol.EndMessage](raw)
			if err != nil {
				summary.Incomplete = true
				return summary, fmt.Errorf("decoding stream end: %w", err)
			}
			summary.Declared = msg.TotalImages
			if msg.TotalImages != summary.Images {
				r.log.Warn("stream image count mismatch",
					"request_id", summary.RequestID,
					"declared", msg.TotalImages,
					"received", summary.Images,
				)
			}
			r.log.Info("stream complete",
				"request_id", summary.RequestID,
				"images", summary.Images,
				"bytes", summary.Bytes,
			)
			return summary, nil

		default:
			r.log.Warn("unexpected stream message", "type", ctrl.Type)
		}
	}
}

func (r *Receiver) receiveImage(meta *protocol.ImageMetadata, summary *Summary) error {
	if meta.Size <= 0 {
		return fmt.Errorf("image %d declares invalid size %d", meta.ImageNumber, meta.Size)
	}
	if meta.Size > r.cfg.MaxImageSize {
		return fmt.Errorf("image %d declares %d bytes, above the %d byte ceiling",
			meta.ImageNumber, meta.Size, r.cfg.MaxImageSize)
	}

	data, err := r.channel.RecvBinary(meta.Size)
	if err != nil {
		return fmt.Errorf("receiving image %d body: %w", meta.ImageNumber, err)
	}
	if err := r.sink.Store(meta, data); err != nil {
		return fmt.Errorf("storing image %d: %w", meta.ImageNumber, err)
	}

	summary.Images++
	summary.Bytes += len(data)
	r.log.Debug("image stored", "request_id", meta.RequestID, "image_number", meta.ImageNumber, "size", len(data))
	return nil
}
