package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// syntheticSource generates placeholder frames when no camera hardware
// is attached: a JPEG magic prefix, a frame counter, and random body
// bytes so every frame differs.
type syntheticSource struct {
	frameSize int
	counter   uint64
}

func (s *syntheticSource) NextFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame := make([]byte, s.frameSize)
	// JPEG SOI marker so downstream tooling recognizes the files.
	frame[0], frame[1] = 0xFF, 0xD8
	s.counter++
	binary.BigEndian.PutUint64(frame[2:10], s.counter)
	if _, err := rand.Read(frame[10:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// dirSource cycles through the image files of a directory, for replaying
// recorded captures.
type dirSource struct {
	files []string
	next  int
}

func newDirSource(dir string) (*dirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading image directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("image directory %s is empty", dir)
	}
	sort.Strings(files)

	return &dirSource{files: files}, nil
}

func (s *dirSource) NextFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.files[s.next])
	if err != nil {
		return nil, err
	}
	s.next = (s.next + 1) % len(s.files)
	return data, nil
}
