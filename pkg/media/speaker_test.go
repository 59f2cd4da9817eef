package media

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mockmate/mockmate/pkg/live/session"
)

func newTestSpeaker() *Speaker {
	return newSpeaker(nil, session.PlaybackAudioSpec())
}

type readResult struct {
	n   int
	err error
	p   []byte
}

func readAsync(s *Speaker, gen, size int) chan readResult {
	out := make(chan readResult, 1)
	go func() {
		r := &speakerReader{s: s, gen: gen}
		p := make([]byte, size)
		n, err := r.Read(p)
		out <- readResult{n: n, err: err, p: p[:n]}
	}()
	return out
}

func TestReaderDeliversBufferedPCM(t *testing.T) {
	s := newTestSpeaker()
	s.playing = true // no real player in tests

	s.Write([]byte{1, 2, 3, 4})
	res := <-readAsync(s, s.gen, 8)
	if res.err != nil {
		t.Fatalf("Read: %v", res.err)
	}
	if !bytes.Equal(res.p, []byte{1, 2, 3, 4}) {
		t.Fatalf("read = %v", res.p)
	}
}

func TestFlushRetiresParkedReader(t *testing.T) {
	s := newTestSpeaker()
	s.playing = true

	// A reader parked on an empty buffer belongs to the pre-flush player.
	stale := readAsync(s, s.gen, 8)
	select {
	case res := <-stale:
		t.Fatalf("reader returned early: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}

	s.Flush()

	select {
	case res := <-stale:
		if !errors.Is(res.err, io.EOF) {
			t.Fatalf("stale reader err = %v, want EOF", res.err)
		}
		if res.n != 0 {
			t.Fatalf("stale reader consumed %d bytes", res.n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stale reader still parked after Flush")
	}

	// Post-flush audio goes to the new generation's reader, not the old one.
	s.playing = true
	s.Write([]byte{9, 9})
	res := <-readAsync(s, s.gen, 8)
	if res.err != nil || !bytes.Equal(res.p, []byte{9, 9}) {
		t.Fatalf("fresh reader got (%v, %v), want [9 9]", res.p, res.err)
	}
}

func TestFlushDropsPendingAudio(t *testing.T) {
	s := newTestSpeaker()
	s.playing = true

	s.Write([]byte{1, 2, 3, 4})
	s.Flush()
	if len(s.buf) != 0 {
		t.Fatalf("buffer = %v after Flush", s.buf)
	}
	if s.playing {
		t.Fatal("still playing after Flush")
	}
}

func TestCloseDrainsWithSilence(t *testing.T) {
	s := newTestSpeaker()
	s.playing = true
	gen := s.gen

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	res := <-readAsync(s, gen, 4)
	if res.err != nil {
		t.Fatalf("Read after close: %v", res.err)
	}
	if !bytes.Equal(res.p, []byte{0, 0, 0, 0}) {
		t.Fatalf("read = %v, want silence", res.p)
	}

	// Writes after close are ignored.
	s.Write([]byte{1})
	if len(s.buf) != 0 {
		t.Fatal("Write after Close buffered data")
	}
}
