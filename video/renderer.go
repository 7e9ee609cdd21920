/*
NAME
  renderer.go

DESCRIPTION
  renderer.go describes the collaborators of the video stream: the decoder
  renderer that consumes decode units and the control channel that is told
  about received frames and loss.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package video

// StatusListener is notified of data plane events so that the control
// channel can keep statistics and ask the host for a key frame. All methods
// must return promptly; they are called on the packet receive path.
type StatusListener interface {
	// FrameReceived is called for every published decode unit.
	FrameReceived(frame uint32)

	// PacketsLost is called when packets from through to (inclusive of from)
	// did not arrive in order.
	PacketsLost(from, to uint32)

	// SinkTooSlow is called when queued decode units for frames from through
	// to were discarded because the consumer fell behind.
	SinkTooSlow(from, to uint32)

	// FrameLossDetected is called when a frame completes after packet loss.
	FrameLossDetected(from, to uint32)
}

// Renderer capabilities.
const (
	// CapabilityDirectSubmit indicates that SubmitDecodeUnit may be called
	// directly from the packet receive path, bypassing the decode unit queue.
	CapabilityDirectSubmit = 1 << iota
)

// DirectSubmitter accepts decode units synchronously as they are produced.
type DirectSubmitter interface {
	SubmitDecodeUnit(du *DecodeUnit)
}

// Renderer decodes and renders decode units.
type Renderer interface {
	DirectSubmitter

	// Setup prepares the renderer for a stream of the given dimensions and
	// frame rate, rendering to target. flags are renderer specific.
	Setup(width, height, fps int, target interface{}, flags int) error

	Start() error
	Stop()
	Release()

	// Capabilities returns a bitmask of renderer capabilities.
	Capabilities() int
}
