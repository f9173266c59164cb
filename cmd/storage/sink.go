package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
)

// dirSink writes each received image under the output directory, one
// subdirectory per request id.
type dirSink struct {
	root string
}

func newDirSink(root string) (*dirSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &dirSink{root: root}, nil
}

func (s *dirSink) Store(meta *protocol.ImageMetadata, data []byte) error {
	dir := s.root
	if meta.RequestID != "" {
		dir = filepath.Join(s.root, meta.RequestID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating session directory: %w", err)
		}
	}

	name := fmt.Sprintf("image_%04d.jpg", meta.ImageNumber)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
