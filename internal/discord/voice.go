package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/brvfd/scannerbot/internal/observe"
)

// ChunkSource supplies fixed-size PCM chunks on demand. It must never
// block: when no audio is available it returns silence of the usual
// size. The receiver's sink satisfies this.
type ChunkSource interface {
	ReadChunk() []byte
}

// Playback streams receiver audio into one Discord voice channel. A 20 ms
// ticker pulls chunks from the source, applies the volume setting,
// encodes to Opus, and hands frames to the voice connection. The pull
// cadence belongs to Playback, not the radio: the source just answers
// with whatever it has.
//
// Playback is safe for concurrent use; at most one voice channel is
// joined at a time.
type Playback struct {
	mu      sync.Mutex
	source  ChunkSource
	volume  float64
	vc      *discordgo.VoiceConnection
	cancel  context.CancelFunc
	done    chan struct{}
	metrics *observe.Metrics
}

// NewPlayback creates a playback engine pulling from source at unit
// volume. metrics may be nil.
func NewPlayback(source ChunkSource, metrics *observe.Metrics) *Playback {
	return &Playback{
		source:  source,
		volume:  1,
		metrics: metrics,
	}
}

// Join connects to the given voice channel and starts streaming. Joining
// while already connected moves the stream: the old channel is left
// first.
func (p *Playback) Join(s *discordgo.Session, guildID, channelID string) error {
	p.Leave()

	// mute=false, deaf=true: the bot only transmits.
	vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("discord: join voice channel %s: %w", channelID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.vc = vc
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.VoiceConnections.Add(ctx, 1)
	}

	go p.stream(ctx, vc, done)
	return nil
}

// Leave stops streaming and disconnects from the voice channel. Leaving
// while not connected is a no-op.
func (p *Playback) Leave() {
	p.mu.Lock()
	vc, cancel, done := p.vc, p.cancel, p.done
	p.vc, p.cancel, p.done = nil, nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if err := vc.Disconnect(); err != nil {
		slog.Warn("discord: voice disconnect failed", "err", err)
	}
	if p.metrics != nil {
		p.metrics.VoiceConnections.Add(context.Background(), -1)
	}
}

// Connected reports whether a voice channel is currently joined.
func (p *Playback) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vc != nil
}

// Volume returns the current playback volume (1 = unity).
func (p *Playback) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume updates the playback volume, clamped to [0, 2].
func (p *Playback) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 2 {
		v = 2
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

// stream is the send loop: one Opus frame per 20 ms tick until ctx is
// cancelled.
func (p *Playback) stream(ctx context.Context, vc *discordgo.VoiceConnection, done chan struct{}) {
	defer close(done)

	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "error", err)
		return
	}

	if err := vc.Speaking(true); err != nil {
		slog.Warn("discord: speaking notification error", "error", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			slog.Warn("discord: speaking notification error", "error", err)
		}
	}()

	ticker := time.NewTicker(opusFrameSizeMs * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		chunk := p.source.ReadChunk()
		if len(chunk) != opusFrameBytes {
			continue
		}

		if v := p.Volume(); v != 1 {
			applyVolume(chunk, v)
		}

		frame, err := enc.encode(chunk)
		if err != nil {
			slog.Warn("discord: opus encode error", "error", err)
			continue
		}

		select {
		case vc.OpusSend <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// applyVolume scales int16 PCM in place, clipping at the int16 bounds.
func applyVolume(pcm []byte, v float64) {
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(pcm[i]) | int16(pcm[i+1])<<8)
		s *= v
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out := int16(s)
		pcm[i] = byte(out)
		pcm[i+1] = byte(out >> 8)
	}
}
