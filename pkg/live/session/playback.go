package session

import (
	"sync"
	"time"
)

// AudioSink receives decoded PCM for output. Write is called in scheduled
// playback order; Flush discards anything the device has buffered.
type AudioSink interface {
	Write(pcm []byte)
	Flush()
}

type playbackUnit struct {
	id       uint64
	pcm      []byte
	startAt  time.Time
	duration time.Duration

	playTimer *time.Timer
	doneTimer *time.Timer
}

// PlaybackScheduler turns irregularly-arriving synthesized audio chunks into
// a gapless output timeline. Each enqueued chunk is scheduled at
// max(nextAvailable, now) and advances a monotonically non-decreasing cursor
// by its duration, so back-to-back chunks neither overlap nor gap even when
// they arrive faster or slower than real time.
type PlaybackScheduler struct {
	spec AudioSpec
	sink AudioSink

	// now and after are injectable for tests.
	now   func() time.Time
	after func(d time.Duration, f func()) *time.Timer

	mu     sync.Mutex
	cursor time.Time
	live   map[uint64]*playbackUnit
	nextID uint64
}

// NewPlaybackScheduler creates a scheduler writing to sink in the given spec.
func NewPlaybackScheduler(spec AudioSpec, sink AudioSink) *PlaybackScheduler {
	return &PlaybackScheduler{
		spec:  spec,
		sink:  sink,
		now:   time.Now,
		after: time.AfterFunc,
		live:  make(map[uint64]*playbackUnit),
	}
}

// Enqueue schedules one PCM chunk for playback. Empty chunks are dropped.
func (p *PlaybackScheduler) Enqueue(pcm []byte) {
	duration := p.spec.Duration(len(pcm))
	if duration <= 0 {
		return
	}

	p.mu.Lock()
	now := p.now()
	startAt := p.cursor
	if startAt.Before(now) {
		startAt = now
	}
	p.cursor = startAt.Add(duration)

	p.nextID++
	unit := &playbackUnit{
		id:       p.nextID,
		pcm:      pcm,
		startAt:  startAt,
		duration: duration,
	}
	p.live[unit.id] = unit
	unit.playTimer = p.after(startAt.Sub(now), func() { p.play(unit.id) })
	p.mu.Unlock()
}

// play writes a unit to the sink at its scheduled start and arms the natural
// completion timer. Completion is the only way a unit leaves the live set
// outside of CancelAll.
func (p *PlaybackScheduler) play(id uint64) {
	p.mu.Lock()
	unit, ok := p.live[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	pcm := unit.pcm
	unit.doneTimer = p.after(unit.duration, func() { p.complete(id) })
	p.mu.Unlock()

	p.sink.Write(pcm)
}

func (p *PlaybackScheduler) complete(id uint64) {
	p.mu.Lock()
	delete(p.live, id)
	p.mu.Unlock()
}

// CancelAll stops every scheduled-but-unfinished unit, clears the live set,
// resets the cursor to the current clock so the next Enqueue starts
// immediately, and flushes the sink. Safe to call when nothing is scheduled.
func (p *PlaybackScheduler) CancelAll() {
	p.mu.Lock()
	for id, unit := range p.live {
		if unit.playTimer != nil {
			unit.playTimer.Stop()
		}
		if unit.doneTimer != nil {
			unit.doneTimer.Stop()
		}
		delete(p.live, id)
	}
	p.cursor = p.now()
	p.mu.Unlock()

	p.sink.Flush()
}

// Pending reports how many units are scheduled or playing.
func (p *PlaybackScheduler) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// nextStart exposes the cursor for tests.
func (p *PlaybackScheduler) nextStart() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}
