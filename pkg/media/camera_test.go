package media

import (
	"bytes"
	"image/color"
	"testing"
	"time"
)

func TestDecodeRGB24(t *testing.T) {
	// 2x1: pure red then pure blue.
	buf := []byte{255, 0, 0, 0, 0, 255}
	img := decodeRGB24(buf, 2, 1)

	if got := img.RGBAAt(0, 0); got != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("pixel (0,0) = %v", got)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{B: 255, A: 255}) {
		t.Fatalf("pixel (1,0) = %v", got)
	}
}

func TestReadFramesKeepsOnlyLatest(t *testing.T) {
	c := &Camera{width: 2, height: 2, done: make(chan struct{})}

	// Two full frames back to back; the second must win.
	frameBytes := 2 * 2 * 3
	first := bytes.Repeat([]byte{10, 20, 30}, 4)
	second := bytes.Repeat([]byte{40, 50, 60}, 4)
	stream := append(append([]byte{}, first...), second...)
	if len(stream) != 2*frameBytes {
		t.Fatalf("bad fixture: %d bytes", len(stream))
	}

	go c.readFrames(bytes.NewReader(stream))
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not finish")
	}

	img, ok := c.Latest()
	if !ok {
		t.Fatal("no frame retained")
	}
	bounds := img.Bounds()
	if bounds.Dx() != 2 || bounds.Dy() != 2 {
		t.Fatalf("bounds = %v", bounds)
	}
	if got := c.latest.RGBAAt(0, 0); got != (color.RGBA{R: 40, G: 50, B: 60, A: 255}) {
		t.Fatalf("pixel (0,0) = %v, want second frame's color", got)
	}
}

func TestReadFramesDiscardsPartialFrame(t *testing.T) {
	c := &Camera{width: 2, height: 2, done: make(chan struct{})}

	go c.readFrames(bytes.NewReader([]byte{1, 2, 3}))
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not finish")
	}

	if _, ok := c.Latest(); ok {
		t.Fatal("partial frame surfaced")
	}
}
