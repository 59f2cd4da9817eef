package media

import (
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// Camera captures stills by running ffmpeg against the platform capture
// device and keeping only the newest decoded frame. Older frames are
// discarded immediately; the session layer samples Latest at its own pace.
type Camera struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	width  int
	height int

	mu     sync.Mutex
	latest *image.RGBA

	closeOnce sync.Once
	done      chan struct{}
}

func openCamera(opts DeviceOptions) (*Camera, error) {
	size := fmt.Sprintf("%dx%d", opts.CameraWidth, opts.CameraHeight)
	// rawvideo out keeps decoding on our side trivial: fixed-size rgb24
	// frames on stdout.
	cmd := exec.Command(opts.FFmpegPath,
		"-loglevel", "error",
		"-f", cameraInputFormat(),
		"-framerate", strconv.Itoa(opts.CameraFPS),
		"-video_size", size,
		"-i", opts.CameraDevice,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("camera stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg for %s: %w", opts.CameraDevice, err)
	}

	c := &Camera{
		cmd:    cmd,
		stdout: stdout,
		width:  opts.CameraWidth,
		height: opts.CameraHeight,
		done:   make(chan struct{}),
	}
	go c.readFrames(stdout)
	return c, nil
}

// readFrames consumes fixed-size rgb24 frames until the pipe closes.
func (c *Camera) readFrames(r io.Reader) {
	defer close(c.done)

	frameBytes := c.width * c.height * 3
	buf := make([]byte, frameBytes)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		frame := decodeRGB24(buf, c.width, c.height)
		c.mu.Lock()
		c.latest = frame
		c.mu.Unlock()
	}
}

// decodeRGB24 expands a packed rgb24 buffer into an RGBA image.
func decodeRGB24(buf []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		src := i * 3
		dst := i * 4
		img.Pix[dst] = buf[src]
		img.Pix[dst+1] = buf[src+1]
		img.Pix[dst+2] = buf[src+2]
		img.Pix[dst+3] = 0xFF
	}
	return img
}

// Latest returns the newest frame, or ok=false before the first frame
// arrives.
func (c *Camera) Latest() (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return nil, false
	}
	return c.latest, true
}

// Close stops the subprocess and waits for the reader to drain.
func (c *Camera) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdout.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		<-c.done
		_ = c.cmd.Wait()
	})
	return nil
}
