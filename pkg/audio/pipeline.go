// Package audio streams a resolved locator into a Discord voice
// connection. ffmpeg decodes the remote stream to PCM, gopus encodes
// 20ms Opus frames, and playback progress is reported back so the
// queue's offset (and its snapshot) can follow along.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"layeh.com/gopus"

	"github.com/latoulicious/Kitasan/pkg/provider"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960                            // 20ms at 48kHz
	frameBytes = frameSize * channels * 2       // s16le
	frameTime  = 20 * time.Millisecond
)

// Pipeline streams one track at a time into a voice connection. Safe
// for use from the playback loop plus a concurrent Stop.
type Pipeline struct {
	voiceConn *discordgo.VoiceConnection
	logger    *log.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	isPlaying bool

	onProgress       func(time.Duration)
	progressInterval time.Duration
}

// NewPipeline creates a pipeline bound to a voice connection.
func NewPipeline(vc *discordgo.VoiceConnection, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		voiceConn:        vc,
		logger:           logger.With("component", "audio"),
		progressInterval: 5 * time.Second,
	}
}

// OnProgress registers a callback receiving the playback offset at a
// fixed cadence while streaming. Play snapshots the callback when it
// starts; registering during an active stream takes effect on the
// next Play.
func (p *Pipeline) OnProgress(fn func(time.Duration)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onProgress = fn
}

// Play streams the URL until it ends, Stop is called or the context is
// cancelled. startAt seeks into the stream, used when resuming a
// restored queue. A fetch rejected because the stream URL's signature
// aged out comes back as an expiry-classified error, so callers can
// re-resolve and retry.
func (p *Pipeline) Play(ctx context.Context, streamURL string, startAt time.Duration) error {
	p.mu.Lock()
	if p.isPlaying {
		p.mu.Unlock()
		return errors.New("pipeline is already playing")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.isPlaying = true
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		p.isPlaying = false
		p.cancel = nil
		p.mu.Unlock()
	}()

	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return errors.Wrap(err, "create opus encoder")
	}
	encoder.SetBitrate(128000)

	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
	}
	if startAt > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", startAt.Seconds()))
	}
	args = append(args,
		"-i", streamURL,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ac", fmt.Sprint(channels),
		"-vn",
		"-")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "create stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start ffmpeg")
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}()

	if err := p.waitForVoiceReady(ctx); err != nil {
		return err
	}

	p.voiceConn.Speaking(true)
	defer p.voiceConn.Speaking(false)

	streamErr := p.streamFrames(ctx, stdout, encoder, startAt)
	if streamErr != nil {
		return classifyStreamError(streamErr, stderr.String())
	}

	// ffmpeg may still exit nonzero after a clean-looking EOF, e.g.
	// when the CDN cut the connection on an expired signature.
	if waitErr := cmd.Wait(); waitErr != nil && ctx.Err() == nil {
		return classifyStreamError(waitErr, stderr.String())
	}
	return nil
}

func (p *Pipeline) streamFrames(ctx context.Context, reader io.Reader, encoder *gopus.Encoder, startAt time.Duration) error {
	p.mu.RLock()
	onProgress := p.onProgress
	progressInterval := p.progressInterval
	p.mu.RUnlock()

	buffer := make([]byte, frameBytes)
	frameCount := 0
	lastProgress := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := readFrame(reader, buffer); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		samples := bytesToInt16(buffer)
		opusData, err := encoder.Encode(samples, frameSize, frameBytes)
		if err != nil {
			p.logger.Warn("opus encoding error, dropping frame", "error", err)
			continue
		}

		select {
		case p.voiceConn.OpusSend <- opusData:
			frameCount++
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
			p.logger.Warn("voice send blocked, dropping frame")
		}

		if onProgress != nil && time.Since(lastProgress) >= progressInterval {
			lastProgress = time.Now()
			onProgress(startAt + time.Duration(frameCount)*frameTime)
		}
	}
}

func readFrame(reader io.Reader, buffer []byte) error {
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(reader, buffer)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		return errors.New("timeout reading PCM data")
	}
}

// Stop cancels the current stream, if any. It never blocks on the
// streaming goroutine.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// IsPlaying reports whether a stream is active.
func (p *Pipeline) IsPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isPlaying
}

func (p *Pipeline) waitForVoiceReady(ctx context.Context) error {
	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return errors.New("timeout waiting for voice connection")
		case <-ticker.C:
			if p.voiceConn.Ready {
				return nil
			}
		}
	}
}

// classifyStreamError folds ffmpeg's stderr into the returned error and
// flags signature expiry so the caller's refresh loop can react.
func classifyStreamError(err error, stderrOutput string) error {
	tail := stderrTail(stderrOutput, 400)
	if strings.Contains(stderrOutput, "403 Forbidden") || strings.Contains(stderrOutput, "410 Gone") {
		return errors.Wrapf(provider.ErrLocatorExpired, "ffmpeg: %s", tail)
	}
	if tail != "" {
		return errors.Wrapf(err, "ffmpeg: %s", tail)
	}
	return err
}

func stderrTail(output string, max int) string {
	output = strings.TrimSpace(output)
	if len(output) > max {
		output = output[len(output)-max:]
	}
	return output
}

func bytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}
