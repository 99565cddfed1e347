// Package audio transcodes recordings into the PCM WAV format expected by
// speech recognition.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// CommandRunner runs an external tool and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Converter wraps ffmpeg.
type Converter struct {
	runner  CommandRunner
	ffmpeg  string
	tempDir string
}

type Option func(*Converter)

func WithFFmpeg(bin string) Option {
	return func(c *Converter) {
		if bin = strings.TrimSpace(bin); bin != "" {
			c.ffmpeg = bin
		}
	}
}

// WithTempDir sets where transcoded files are written. Defaults to os.TempDir.
func WithTempDir(dir string) Option {
	return func(c *Converter) {
		c.tempDir = strings.TrimSpace(dir)
	}
}

func NewConverter(runner CommandRunner, opts ...Option) (*Converter, error) {
	if runner == nil {
		return nil, errors.New("audio: runner must not be nil")
	}
	c := &Converter{runner: runner, ffmpeg: "ffmpeg"}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ToWAV converts src into a 16 kHz mono 16-bit PCM WAV temp file. The caller
// must invoke release once done; release removes the temp file. On error
// nothing is left behind and release is a no-op.
func (c *Converter) ToWAV(ctx context.Context, src string) (path string, release func(), err error) {
	tmp, err := os.CreateTemp(c.tempDir, "segment-*.wav")
	if err != nil {
		return "", func() {}, fmt.Errorf("audio: create temp file: %w", err)
	}
	path = tmp.Name()
	_ = tmp.Close()

	release = func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("failed to remove temp audio", "path", path, "err", rmErr)
		}
	}

	_, err = c.runner.Run(ctx, c.ffmpeg,
		"-i", src,
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y", path,
	)
	if err != nil {
		release()
		return "", func() {}, fmt.Errorf("audio: ffmpeg convert: %w", err)
	}
	return path, release, nil
}
