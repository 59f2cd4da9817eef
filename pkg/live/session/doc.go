// Package session implements the live rehearsal engine: a Controller that
// owns one bidirectional coach session at a time, the capture pipeline that
// streams microphone PCM and periodic camera stills, the demultiplexer that
// routes inbound coach events, gapless playback scheduling for synthesized
// speech, transcript aggregation into conversation turns, and the tool-call
// bridge for on-screen feedback cues.
//
// The Controller is the only public entry point for driving a session; the
// remaining types are exported so alternative transports and devices can be
// injected.
package session
