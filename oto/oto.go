// Package oto adapts the ebitengine/oto audio backend to the kaiku audio
// interfaces. Oto pulls samples through an io.Reader, so the sink buffers
// written audio in a small bounded stream that the playback goroutine drains.
package oto

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/vsariola/kaiku"
)

type (
	Context struct {
		context *oto.Context
	}

	Output struct {
		player *oto.Player
		stream *stream
		tmp    []byte
	}
)

// streamCap bounds the bytes queued between WriteAudio and the playback
// goroutine; at 48 kHz stereo float32 this is about 170 ms.
const streamCap = 1 << 16

// NewContext opens the audio device at the given rate in stereo float32.
func NewContext(sampleRate int) (*Context, error) {
	if sampleRate <= 0 {
		sampleRate = kaiku.DefaultSampleRate
	}
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{context: context}, nil
}

// Output starts a player pulling from a fresh stream and returns it as a
// kaiku.AudioSink.
func (c *Context) Output() kaiku.AudioSink {
	s := newStream()
	player := c.context.NewPlayer(s)
	player.Play()
	return &Output{player: player, stream: s}
}

func (c *Context) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

// WriteAudio queues a stereo buffer for playback, blocking when the stream
// is full so a fast renderer stays roughly in step with the device.
func (o *Output) WriteAudio(buffer kaiku.AudioBuffer) error {
	o.tmp = appendFloat32LE(o.tmp[:0], buffer)
	o.stream.write(o.tmp)
	return nil
}

// Close drains the queued audio before stopping the player, so the tail of
// the signal is not cut off.
func (o *Output) Close() error {
	o.stream.close()
	for o.player.IsPlaying() && o.player.BufferedSize() > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// stream is the bounded byte queue between the sink and the oto player.
type stream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newStream() *stream {
	s := &stream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	s.cond.Broadcast()
	return n, nil
}

func (s *stream) write(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) > streamCap && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return
	}
	s.buf = append(s.buf, b...)
	s.cond.Broadcast()
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}
