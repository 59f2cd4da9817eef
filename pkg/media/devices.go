package media

import (
	"fmt"
	"runtime"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/mockmate/mockmate/pkg/live/session"
)

// DeviceOptions configures the hardware layer.
type DeviceOptions struct {
	// CameraDevice is the capture device passed to ffmpeg, e.g. "/dev/video0"
	// on Linux or "0" on macOS. Empty disables the camera; sessions then run
	// audio-only.
	CameraDevice string

	// CameraWidth and CameraHeight are the requested capture resolution.
	// Defaults 640x480.
	CameraWidth  int
	CameraHeight int

	// CameraFPS is the subprocess capture rate. The session layer samples the
	// latest frame at its own interval, so this only bounds freshness.
	// Default 2.
	CameraFPS int

	// FFmpegPath overrides the ffmpeg binary location. Default "ffmpeg".
	FFmpegPath string
}

func (o DeviceOptions) withDefaults() DeviceOptions {
	if o.CameraWidth <= 0 {
		o.CameraWidth = 640
	}
	if o.CameraHeight <= 0 {
		o.CameraHeight = 480
	}
	if o.CameraFPS <= 0 {
		o.CameraFPS = 2
	}
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	return o
}

// cameraInputFormat picks the ffmpeg input demuxer for the host platform.
func cameraInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}

// DeviceManager owns the process-wide audio contexts and opens per-session
// device handles. Create one per process; oto in particular only supports a
// single context.
type DeviceManager struct {
	opts DeviceOptions

	malgoCtx *malgo.AllocatedContext
	otoCtx   *oto.Context
}

// NewDeviceManager initializes the audio backends.
func NewDeviceManager(opts DeviceOptions) (*DeviceManager, error) {
	malgoConfig := malgo.ContextConfig{}
	malgoConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, malgoConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	outSpec := session.PlaybackAudioSpec()
	otoOpts := &oto.NewContextOptions{
		SampleRate:   outSpec.SampleRate,
		ChannelCount: outSpec.Channels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms buffer keeps coach speech latency low.
		BufferSize: outSpec.BytesPerSecond() / 10,
	}
	otoCtx, ready, err := oto.NewContext(otoOpts)
	if err != nil {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("init speaker context: %w", err)
	}
	<-ready

	return &DeviceManager{
		opts:     opts.withDefaults(),
		malgoCtx: malgoCtx,
		otoCtx:   otoCtx,
	}, nil
}

// OpenMic starts microphone capture producing blocks of the given duration.
func (m *DeviceManager) OpenMic(blockDuration time.Duration) (session.AudioSource, error) {
	return openMicrophone(m.malgoCtx.Context, session.CaptureAudioSpec(), blockDuration)
}

// OpenCamera starts the camera subprocess, or returns (nil, nil) when no
// camera device is configured.
func (m *DeviceManager) OpenCamera() (session.FrameSource, error) {
	if m.opts.CameraDevice == "" {
		return nil, nil
	}
	return openCamera(m.opts)
}

// OpenSpeaker returns a playback sink on the shared oto context.
func (m *DeviceManager) OpenSpeaker() (session.AudioSink, error) {
	return newSpeaker(m.otoCtx, session.PlaybackAudioSpec()), nil
}

// Close releases the audio backends. Open device handles must be closed
// first.
func (m *DeviceManager) Close() error {
	if m.malgoCtx != nil {
		err := m.malgoCtx.Uninit()
		m.malgoCtx.Free()
		m.malgoCtx = nil
		if err != nil {
			return fmt.Errorf("uninit audio context: %w", err)
		}
	}
	return nil
}
