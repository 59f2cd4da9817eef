package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mockmate/mockmate/pkg/live/protocol"
)

// Seniority is the target seniority tier for the rehearsed role.
type Seniority string

const (
	SeniorityJunior Seniority = "junior"
	SeniorityMid    Seniority = "mid"
	SenioritySenior Seniority = "senior"
	SeniorityLead   Seniority = "lead"
)

// Valid reports whether the seniority is one of the known tiers.
func (s Seniority) Valid() bool {
	switch s {
	case SeniorityJunior, SeniorityMid, SenioritySenior, SeniorityLead:
		return true
	}
	return false
}

// Config describes one rehearsal. It is supplied at session start and is
// immutable for the session's life.
type Config struct {
	// Role is the job title being rehearsed, e.g. "Backend Engineer".
	Role string

	// Company optionally names the target organization.
	Company string

	// Seniority is the target tier.
	Seniority Seniority

	// FocusTopics are the areas the coach should probe.
	FocusTopics []string
}

// Validate checks the config before a session is started.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Role) == "" {
		return fmt.Errorf("role must not be empty")
	}
	if !c.Seniority.Valid() {
		return fmt.Errorf("unknown seniority %q", c.Seniority)
	}
	return nil
}

// Instruction builds the natural-language behavioral instruction sent to the
// coach in the setup frame.
func (c Config) Instruction() string {
	var b strings.Builder
	b.WriteString("You are an experienced interviewer conducting a spoken mock job interview. ")
	fmt.Fprintf(&b, "The candidate is interviewing for a %s %s position", c.Seniority, strings.TrimSpace(c.Role))
	if company := strings.TrimSpace(c.Company); company != "" {
		fmt.Fprintf(&b, " at %s", company)
	}
	b.WriteString(". ")
	if len(c.FocusTopics) > 0 {
		topics := make([]string, 0, len(c.FocusTopics))
		for _, t := range c.FocusTopics {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
		sort.Strings(topics)
		if len(topics) > 0 {
			fmt.Fprintf(&b, "Focus your questions on: %s. ", strings.Join(topics, ", "))
		}
	}
	b.WriteString("Ask one question at a time, follow up on weak answers, and keep replies conversational. ")
	b.WriteString("You can see the candidate through their camera; when you notice something about their delivery or presence worth flagging, call the ")
	b.WriteString(CueToolName)
	b.WriteString(" tool with a short cue and a sentiment.")
	return b.String()
}

// Options tune the engine's capture and playback behavior. The zero value is
// usable; Start applies the defaults below.
type Options struct {
	// AgentURL is the websocket endpoint of the remote coach.
	AgentURL string

	// BlockDuration is the microphone block size. Default 20ms.
	BlockDuration time.Duration

	// FrameInterval is the camera capture period. Default 1s.
	FrameInterval time.Duration

	// JPEGQuality is the still-image quality factor. Default 70.
	JPEGQuality int

	// FramePolicy controls what happens when a camera frame is still being
	// encoded/sent when the next tick fires. Default FramePolicyDrop.
	FramePolicy FramePolicy

	// CueDuration is how long a visual cue stays up before expiring.
	// Default 4500ms.
	CueDuration time.Duration

	// Debug enables category-tagged stderr logging.
	Debug bool
}

func (o Options) withDefaults() Options {
	if o.BlockDuration <= 0 {
		o.BlockDuration = 20 * time.Millisecond
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = time.Second
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = 70
	}
	if o.FramePolicy == "" {
		o.FramePolicy = FramePolicyDrop
	}
	if o.CueDuration <= 0 {
		o.CueDuration = 4500 * time.Millisecond
	}
	return o
}

// AudioSpec carries PCM shape parameters for one direction of the channel.
type AudioSpec struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// CaptureAudioSpec is the microphone format sent to the coach.
func CaptureAudioSpec() AudioSpec {
	return AudioSpec{SampleRate: protocol.AudioInSampleRateHz, Channels: 1, BitsPerSample: 16}
}

// PlaybackAudioSpec is the synthesized speech format received from the coach.
func PlaybackAudioSpec() AudioSpec {
	return AudioSpec{SampleRate: protocol.AudioOutSampleRateHz, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the PCM byte rate.
func (s AudioSpec) BytesPerSecond() int {
	return s.SampleRate * s.Channels * (s.BitsPerSample / 8)
}

// BlockBytes returns the byte size of one capture block of duration d.
func (s AudioSpec) BlockBytes(d time.Duration) int {
	return int(int64(s.BytesPerSecond()) * int64(d) / int64(time.Second))
}

// Duration returns the playback duration of a PCM buffer of the given size.
func (s AudioSpec) Duration(bytes int) time.Duration {
	bps := s.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(bytes) * int64(time.Second) / int64(bps))
}
