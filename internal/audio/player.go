// Package audio plays the short reminder chime.
package audio

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
)

//go:embed chime.wav
var defaultClip []byte

// DefaultClip returns the built-in reminder chime.
func DefaultClip() []byte {
	return defaultClip
}

// Player plays one preloaded clip.
type Player interface {
	Play(ctx context.Context) error
}

// Process-wide audio context; oto allows only one per process.
var (
	globalCtx     *oto.Context
	globalCtxOnce sync.Once
	globalCtxErr  error
)

func initContext(format *Format) error {
	globalCtxOnce.Do(func() {
		sampleFormat, err := otoFormat(format.BitDepth)
		if err != nil {
			globalCtxErr = err
			return
		}
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       sampleFormat,
		})
		if err != nil {
			globalCtxErr = fmt.Errorf("init audio context: %w", err)
			return
		}
		<-ready
		globalCtx = ctx
	})
	return globalCtxErr
}

func otoFormat(bitDepth int) (oto.Format, error) {
	switch bitDepth {
	case 8:
		return oto.FormatUnsignedInt8, nil
	case 16:
		return oto.FormatSignedInt16LE, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
}

// OtoPlayer plays a WAV clip once per call through the system audio device.
type OtoPlayer struct {
	format *Format
	pcm    []byte
	logger zerolog.Logger
}

// NewOtoPlayer parses clip up front so a broken clip fails at startup.
func NewOtoPlayer(clip []byte, logger *zerolog.Logger) (*OtoPlayer, error) {
	format, pcm, err := ParseWAV(clip)
	if err != nil {
		return nil, fmt.Errorf("parse clip: %w", err)
	}
	if _, err := otoFormat(format.BitDepth); err != nil {
		return nil, err
	}
	return &OtoPlayer{
		format: format,
		pcm:    pcm,
		logger: logger.With().Str("component", "audio").Logger(),
	}, nil
}

// Play starts playback and returns without waiting for the clip to finish.
func (p *OtoPlayer) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := initContext(p.format); err != nil {
		return err
	}
	if globalCtx == nil {
		return errors.New("audio context not ready")
	}

	player := globalCtx.NewPlayer(bytes.NewReader(p.pcm))
	player.Play()
	if err := player.Err(); err != nil {
		player.Close()
		return fmt.Errorf("play clip: %w", err)
	}

	// Playback is not tied to the caller's context.
	go func() {
		for player.IsPlaying() {
			time.Sleep(50 * time.Millisecond)
		}
		if err := player.Close(); err != nil {
			p.logger.Debug().Err(err).Msg("failed to close audio player")
		}
	}()
	return nil
}

// Nop is a Player that does nothing, used when audio is disabled or
// no output device is available.
type Nop struct{}

func (Nop) Play(context.Context) error { return nil }
