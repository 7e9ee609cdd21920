/*
NAME
  collaborators.go

DESCRIPTION
  collaborators.go provides the interfaces of the services and sub-streams
  a Connection drives, and adapters binding the RTSP handshake and video
  stream implementations to them.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package connection

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/gamestream/protocol/rtsp"
	"github.com/ausocean/gamestream/video"
)

// PairState is the pairing state of this device with a host.
type PairState int

// Pairing states.
const (
	NotPaired PairState = iota
	Paired
)

// App is an entry in the host's app list.
type App struct {
	Name string
	ID   int
}

// SessionAPI is the host's session negotiation service.
type SessionAPI interface {
	// ServerInfo returns the host's server info document for this device.
	ServerInfo(ctx context.Context, uniqueID string) (string, error)

	ServerVersion(info string) (string, error)
	PairState(info string) (PairState, error)

	// App returns the named app, or nil if the host does not list it.
	App(ctx context.Context, name string) (*App, error)

	// CurrentGame returns the ID of the app running on the host, or 0.
	CurrentGame(info string) (int, error)

	ResumeApp(ctx context.Context, c *Context) (bool, error)
	QuitApp(ctx context.Context) (bool, error)

	// LaunchApp launches the app with the given ID, returning the session
	// ID, or 0 on failure.
	LaunchApp(ctx context.Context, c *Context, appID int) (int, error)
}

// Host session error codes with specific meaning.
const (
	CodeResumeForbidden = 470
	CodeAppMinimized    = 525
)

// ResponseError is an error response from the session API.
type ResponseError struct {
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("session error %d: %s", e.Code, e.Message)
}

// Handshaker negotiates the stream channels with the host.
type Handshaker interface {
	Handshake(ctx context.Context, c *Context) error
}

// ControlStream is the control sub-stream. It is told of video frame
// reception and loss.
type ControlStream interface {
	video.StatusListener
	Initialize() error
	Start() error
	Abort() error
}

// VideoStream is the video sub-stream.
type VideoStream interface {
	Initialize() error
	StartVideoStream(r video.Renderer, target interface{}, flags int) error
	Abort() error
}

// AudioRenderer plays decoded audio. It is opaque to a Connection and is
// passed to the audio sub-stream.
type AudioRenderer interface{}

// AudioStream is the audio sub-stream.
type AudioStream interface {
	Initialize() error
	Start() error
	Abort() error
}

// ControllerState is the state of a game controller.
type ControllerState struct {
	Buttons      uint16
	LeftTrigger  uint8
	RightTrigger uint8
	LeftStickX   int16
	LeftStickY   int16
	RightStickX  int16
	RightStickY  int16
}

// InputStream is the input sub-stream.
type InputStream interface {
	Initialize() error
	Start() error
	Abort() error

	SendMouseMove(dx, dy int16) error
	SendMouseButtonDown(button uint8) error
	SendMouseButtonUp(button uint8) error
	SendControllerInput(s ControllerState) error
	SendMultiControllerInput(controller int16, s ControllerState) error
	SendKeyboardInput(key int16, direction, modifier uint8) error
	SendMouseScroll(clicks int8) error
}

// Collaborators holds the services and sub-stream constructors used by a
// Connection. Session, NewControl, NewAudio and NewInput are required.
type Collaborators struct {
	Session SessionAPI

	// Handshaker defaults to the RTSP handshake.
	Handshaker Handshaker

	NewControl func(c *Context) (ControlStream, error)

	// NewVideo defaults to a video.Stream reporting to ctrl.
	NewVideo func(c *Context, ctrl video.StatusListener) (VideoStream, error)

	NewAudio func(c *Context, r AudioRenderer) (AudioStream, error)
	NewInput func(c *Context) (InputStream, error)
}

// withDefaults returns co with unset optional members defaulted, or an error
// if a required member is missing.
func (co Collaborators) withDefaults() (Collaborators, error) {
	var missing []error
	if co.Session == nil {
		missing = append(missing, errors.New("no session API"))
	}
	if co.NewControl == nil {
		missing = append(missing, errors.New("no control stream constructor"))
	}
	if co.NewAudio == nil {
		missing = append(missing, errors.New("no audio stream constructor"))
	}
	if co.NewInput == nil {
		missing = append(missing, errors.New("no input stream constructor"))
	}
	if len(missing) != 0 {
		return co, MultiError(missing)
	}
	if co.Handshaker == nil {
		co.Handshaker = rtspHandshaker{}
	}
	if co.NewVideo == nil {
		co.NewVideo = newVideoStream
	}
	return co, nil
}

// rtspHandshaker performs the RTSP handshake using the context's ports and
// the client version matching the host generation.
type rtspHandshaker struct{}

func (rtspHandshaker) Handshake(ctx context.Context, c *Context) error {
	h := &rtsp.Handshaker{
		Port:          int(c.Config.RTSPPort),
		ClientVersion: c.ServerGeneration.clientVersion(),
		VideoPort:     int(c.Config.VideoPort),
		AudioPort:     int(c.Config.AudioPort),
		Log:           c.Config.Logger,
	}
	return h.Handshake(ctx, c.ServerAddress)
}

func newVideoStream(c *Context, ctrl video.StatusListener) (VideoStream, error) {
	return video.NewStream(
		video.StreamContext{
			ServerAddress: c.ServerAddress,
			Port:          int(c.Config.VideoPort),
			Width:         int(c.Config.Width),
			Height:        int(c.Config.Height),
			FrameRate:     int(c.Config.FrameRate),
			DirectSubmit:  c.Config.DirectSubmit,
		},
		ctrl,
		c.Config.Logger,
	), nil
}
