// Package media provides the hardware device layer: microphone capture via
// malgo, speaker output via oto, and camera stills via an ffmpeg subprocess.
// It implements the device interfaces consumed by pkg/live/session.
package media
