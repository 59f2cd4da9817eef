package media

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/mockmate/mockmate/pkg/live/session"
)

// Microphone captures PCM from the default input device and re-chunks the
// driver's callback buffers into fixed-duration blocks.
type Microphone struct {
	device *malgo.Device

	blockBytes int
	blocks     chan []byte

	mu      sync.Mutex
	pending []byte
	closed  bool

	closeOnce sync.Once
}

func openMicrophone(ctx malgo.Context, spec session.AudioSpec, blockDuration time.Duration) (*Microphone, error) {
	m := &Microphone{
		blockBytes: spec.BlockBytes(blockDuration),
		blocks:     make(chan []byte, 64),
	}
	if m.blockBytes <= 0 {
		return nil, fmt.Errorf("block duration %v too short", blockDuration)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(spec.Channels)
	deviceConfig.SampleRate = uint32(spec.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(blockDuration / time.Millisecond)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.ingest(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(ctx, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start microphone: %w", err)
	}
	m.device = device
	return m, nil
}

// ingest accumulates driver buffers and emits full blocks. It runs on the
// audio thread, so a full channel drops the block rather than blocking.
func (m *Microphone) ingest(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.pending = append(m.pending, data...)
	for len(m.pending) >= m.blockBytes {
		block := make([]byte, m.blockBytes)
		copy(block, m.pending[:m.blockBytes])
		m.pending = m.pending[m.blockBytes:]

		select {
		case m.blocks <- block:
		default:
		}
	}
}

// Blocks yields capture blocks in capture order.
func (m *Microphone) Blocks() <-chan []byte {
	return m.blocks
}

// Close stops the device and closes the block channel.
func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		if m.device != nil {
			_ = m.device.Stop()
			m.device.Uninit()
		}
		m.mu.Lock()
		m.closed = true
		m.pending = nil
		m.mu.Unlock()
		close(m.blocks)
	})
	return nil
}
