package media

import (
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/mockmate/mockmate/pkg/live/session"
)

// Speaker plays scheduled PCM through oto. It buffers writes and feeds the
// player via an io.Reader; Flush discards everything pending so a barge-in
// silences the coach immediately.
type Speaker struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	player  *oto.Player
	buf     []byte
	gen     int
	playing bool
	closed  bool
}

// speakerReader is the pull side handed to one oto player. The generation
// pins it to the player it was created for: once Flush or Close retires that
// player, the reader sees EOF instead of stealing PCM meant for a successor.
type speakerReader struct {
	s   *Speaker
	gen int
}

func newSpeaker(ctx *oto.Context, spec session.AudioSpec) *Speaker {
	s := &Speaker{
		otoCtx: ctx,
		buf:    make([]byte, 0, spec.BytesPerSecond()*2),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Write appends PCM to the playback buffer, starting the player lazily on
// the first write so an idle session holds no audio pipeline open.
func (s *Speaker) Write(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.buf = append(s.buf, pcm...)
	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(&speakerReader{s: s, gen: s.gen})
		s.player.Play()
	}
	s.cond.Signal()
}

// Read implements io.Reader for the oto player pull loop.
func (r *speakerReader) Read(p []byte) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed && r.gen == s.gen {
		s.cond.Wait()
	}
	if r.gen != s.gen {
		return 0, io.EOF
	}
	if s.closed && len(s.buf) == 0 {
		// Feed silence so oto drains without an error pop.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Flush drops all buffered audio and retires the current player so stale
// speech cannot bleed into whatever plays next.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.gen++
	player := s.player
	s.player = nil
	s.playing = false
	s.cond.Broadcast()
	s.mu.Unlock()

	if player != nil {
		player.Pause()
		player.Close()
	}
}

// Close stops playback and releases the player.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	player := s.player
	s.player = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if player != nil {
		player.Close()
	}
	return nil
}
