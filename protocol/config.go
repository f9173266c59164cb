package protocol

import "time"

// Config provides the protocol parameters shared by all components.
type Config struct {
	// FreshnessWindow is the maximum allowed distance between a payload
	// timestamp and the verifier's clock for acceptance.
	FreshnessWindow time.Duration `json:"freshness_window,string" yaml:"freshness_window"`

	// ReplayHorizon is how long an accepted digest stays in the replay
	// cache before the sweep reclaims it.
	ReplayHorizon time.Duration `json:"replay_horizon,string" yaml:"replay_horizon"`

	// SweepInterval is the period of the background replay-cache sweep.
	// The cache is additionally swept opportunistically on every
	// verification.
	SweepInterval time.Duration `json:"sweep_interval,string" yaml:"sweep_interval"`

	// HandshakeTimeout bounds the connect-time handshake exchange.
	HandshakeTimeout time.Duration `json:"handshake_timeout,string" yaml:"handshake_timeout"`

	// MaxImageSize is the ceiling a stream receiver accepts for a single
	// declared binary payload. The framed transport itself has no
	// inherent frame limit.
	MaxImageSize int `json:"max_image_size" yaml:"max_image_size"`

	// CaptureDuration is the fixed time budget of one capture session.
	CaptureDuration time.Duration `json:"capture_duration,string" yaml:"capture_duration"`

	// CaptureInterval is the pause between consecutive captured frames.
	CaptureInterval time.Duration `json:"capture_interval,string" yaml:"capture_interval"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		FreshnessWindow:  5 * time.Minute,
		ReplayHorizon:    time.Hour,
		SweepInterval:    time.Minute,
		HandshakeTimeout: 30 * time.Second,
		MaxImageSize:     32 << 20,
		CaptureDuration:  2 * time.Minute,
		CaptureInterval:  10 * time.Second,
	}
}
