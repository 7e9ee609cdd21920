/*
NAME
  connection.go

DESCRIPTION
  connection.go provides Connection, which establishes a streaming session
  with a host in stages, starting the control, video, audio and input
  sub-streams, and tears the session down again.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package connection provides the client side of a game streaming session:
// app launch through the host's session API, the RTSP handshake and the
// lifecycle of the control, video, audio and input sub-streams.
package connection

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ausocean/gamestream/connection/config"
	"github.com/ausocean/gamestream/video"
	"github.com/ausocean/utils/logging"
)

const pkg = "connection: "

// State is the establishment state of a Connection.
type State int

// Connection states.
const (
	NotStarted State = iota
	Connecting
	Connected
	Failed     // A stage failed.
	Terminated // Ended before completing, by Stop, cancellation or failure to resolve the host.
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var (
	errStopped    = errors.New("connection stopped")
	errNotStarted = errors.New("connection not started")
)

// StageError is returned by Wait when a stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage.Name, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// MultiError collects the errors of independent operations.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("connection: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}

// StartParams holds the renderers and render target for a connection.
type StartParams struct {
	// Renderer receives decode units. If nil the video stream's decode units
	// are left queued for the caller.
	Renderer video.Renderer
	Target   interface{}
	Flags    int

	Audio AudioRenderer
}

type inputRef struct{ s InputStream }

// Connection is a streaming session with a host.
type Connection struct {
	host     string
	uniqueID string
	cc       *Context
	co       Collaborators
	log      logging.Logger

	params StartParams
	done   chan struct{}
	err    error // Written by the establishment goroutine before done is closed.

	mu      sync.Mutex
	state   State
	failed  *Stage
	started bool
	stopped bool
	cancel  context.CancelFunc
	control ControlStream
	video   VideoStream
	audio   AudioStream

	// input is published only once the input stream has started.
	input atomic.Pointer[inputRef]
}

// New returns a new Connection to host, identifying this device as uniqueID.
// cfg is validated and defaulted, and a fresh remote input key is generated.
func New(host, uniqueID string, l Listener, cfg config.Config, co Collaborators) (*Connection, error) {
	if l == nil {
		return nil, errors.New("no listener")
	}
	err := cfg.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	co, err = co.withDefaults()
	if err != nil {
		return nil, errors.Wrap(err, "invalid collaborators")
	}
	key, id, err := newKey()
	if err != nil {
		return nil, err
	}
	return &Connection{
		host:     host,
		uniqueID: uniqueID,
		cc: &Context{
			RIKey:    key,
			RIKeyID:  id,
			Config:   cfg,
			Listener: l,
		},
		co:   co,
		log:  cfg.Logger,
		done: make(chan struct{}),
	}, nil
}

// Context returns the connection's shared context.
func (c *Connection) Context() *Context { return c.cc }

// Start begins establishing the connection in the background and returns
// immediately. Progress is reported to the Listener; Wait returns the
// outcome. Cancelling ctx ends establishment before the next stage.
func (c *Connection) Start(ctx context.Context, p StartParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return errStopped
	}
	if c.started {
		return errors.New("connection already started")
	}
	c.started = true
	c.state = Connecting
	c.params = p
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	return nil
}

// run resolves the host and runs each stage in turn, stopping at the first
// failure.
func (c *Connection) run(ctx context.Context) {
	defer close(c.done)
	l := c.cc.Listener

	ip, err := c.resolve(ctx)
	if err != nil {
		c.log.Error(pkg+"could not resolve host", "host", c.host, "error", err.Error())
		c.finish(Terminated, nil, err)
		l.ConnectionTerminated(err)
		return
	}
	c.cc.ServerAddress = ip

	for _, id := range stages {
		if err := ctx.Err(); err != nil {
			c.log.Info(pkg+"connection ended", "before", id.String())
			c.finish(Terminated, nil, err)
			return
		}

		st := Stage{ID: id, Name: id.String()}
		if id == StageLaunchApp {
			st.Name = c.cc.Config.App
		}
		c.log.Info(pkg+"starting stage", "stage", st.Name)
		l.StageStarting(st)

		err := c.runStage(ctx, id)
		if err == nil {
			c.log.Info(pkg+"stage complete", "stage", st.Name)
			l.StageComplete(st)
			continue
		}

		if errors.Is(err, errStopped) || ctx.Err() != nil {
			c.log.Info(pkg+"connection ended", "during", st.Name)
			c.finish(Terminated, nil, err)
			return
		}
		var f *failure
		if errors.As(err, &f) {
			c.log.Warning(pkg+"stage failed", "stage", st.Name, "reason", f.msg)
		} else {
			c.log.Error(pkg+"stage failed", "stage", st.Name, "error", err.Error())
			l.DisplayMessage(err.Error())
		}
		l.StageFailed(st)
		c.finish(Failed, &st, &StageError{Stage: st, Err: err})
		return
	}

	c.finish(Connected, nil, nil)
	c.log.Info(pkg + "connection started")
	l.ConnectionStarted()
}

func (c *Connection) finish(s State, failed *Stage, err error) {
	c.mu.Lock()
	c.state = s
	c.failed = failed
	c.mu.Unlock()
	c.err = err
}

func (c *Connection) resolve(ctx context.Context) (net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, c.host)
	if err != nil {
		return nil, errors.Wrapf(err, "could not resolve %q", c.host)
	}
	if len(addrs) == 0 {
		return nil, errors.Errorf("no addresses for %q", c.host)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	return addrs[0].IP, nil
}

func (c *Connection) runStage(ctx context.Context, id StageID) error {
	switch id {
	case StageLaunchApp:
		return c.launchApp(ctx)
	case StageRTSPHandshake:
		return c.co.Handshaker.Handshake(ctx, c.cc)
	case StageControlStart:
		return c.startControl()
	case StageVideoStart:
		return c.startVideo()
	case StageAudioStart:
		return c.startAudio()
	case StageInputStart:
		return c.startInput()
	default:
		panic(fmt.Sprintf("connection: unknown stage %d", id))
	}
}

// adopt records a newly constructed sub-stream using set so that Stop will
// abort it. If the connection has already been stopped the sub-stream is
// aborted instead.
func (c *Connection) adopt(name string, set func(), abort func() error) error {
	c.mu.Lock()
	stopped := c.stopped
	if !stopped {
		set()
	}
	c.mu.Unlock()
	if !stopped {
		return nil
	}
	err := abort()
	if err != nil {
		c.log.Warning(pkg+"could not abort "+name+" stream", "error", err.Error())
	}
	return errStopped
}

func (c *Connection) startControl() error {
	ctl, err := c.co.NewControl(c.cc)
	if err != nil {
		return errors.Wrap(err, "could not create control stream")
	}
	err = c.adopt("control", func() { c.control = ctl }, ctl.Abort)
	if err != nil {
		return err
	}
	err = ctl.Initialize()
	if err != nil {
		return errors.Wrap(err, "could not initialize control stream")
	}
	return errors.Wrap(ctl.Start(), "could not start control stream")
}

func (c *Connection) startVideo() error {
	c.mu.Lock()
	ctl := c.control
	c.mu.Unlock()

	v, err := c.co.NewVideo(c.cc, ctl)
	if err != nil {
		return errors.Wrap(err, "could not create video stream")
	}
	err = c.adopt("video", func() { c.video = v }, v.Abort)
	if err != nil {
		return err
	}
	err = v.Initialize()
	if err != nil {
		return errors.Wrap(err, "could not initialize video stream")
	}
	p := c.params
	return errors.Wrap(v.StartVideoStream(p.Renderer, p.Target, p.Flags), "could not start video stream")
}

func (c *Connection) startAudio() error {
	a, err := c.co.NewAudio(c.cc, c.params.Audio)
	if err != nil {
		return errors.Wrap(err, "could not create audio stream")
	}
	err = c.adopt("audio", func() { c.audio = a }, a.Abort)
	if err != nil {
		return err
	}
	err = a.Initialize()
	if err != nil {
		return errors.Wrap(err, "could not initialize audio stream")
	}
	return errors.Wrap(a.Start(), "could not start audio stream")
}

// startInput starts the input stream before publishing it, so senders see
// either no input stream or a running one.
func (c *Connection) startInput() error {
	in, err := c.co.NewInput(c.cc)
	if err != nil {
		return errors.Wrap(err, "could not create input stream")
	}
	err = in.Initialize()
	if err == nil {
		err = in.Start()
	}
	if err != nil {
		aerr := in.Abort()
		if aerr != nil {
			c.log.Warning(pkg+"could not abort input stream", "error", aerr.Error())
		}
		return errors.Wrap(err, "could not start input stream")
	}
	return c.adopt("input", func() { c.input.Store(&inputRef{s: in}) }, in.Abort)
}

// Wait blocks until establishment has finished. It returns nil if the
// connection was established, a *StageError if a stage failed, or the error
// that otherwise ended establishment.
func (c *Connection) Wait() error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return errNotStarted
	}
	<-c.done
	return c.err
}

// Done returns a channel that is closed when establishment has finished.
func (c *Connection) Done() <-chan struct{} { return c.done }

// State returns the connection's establishment state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FailedStage returns the stage that failed, if any.
func (c *Connection) FailedStage() (Stage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed == nil {
		return Stage{}, false
	}
	return *c.failed, true
}

// Stop ends establishment and aborts the video, audio, control and input
// streams in that order. Every stream is aborted even if an earlier one
// fails. Stop may be called more than once.
func (c *Connection) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	v, a, ctl := c.video, c.audio, c.control
	c.mu.Unlock()

	var errs MultiError
	abort := func(name string, fn func() error) {
		err := fn()
		if err != nil {
			c.log.Warning(pkg+"could not abort "+name+" stream", "error", err.Error())
			errs = append(errs, fmt.Errorf("could not abort %s stream: %w", name, err))
		}
	}
	if v != nil {
		abort("video", v.Abort)
	}
	if a != nil {
		abort("audio", a.Abort)
	}
	if ctl != nil {
		abort("control", ctl.Abort)
	}
	if in := c.input.Swap(nil); in != nil {
		abort("input", in.s.Abort)
	}
	c.log.Info(pkg + "connection stopped")

	if len(errs) != 0 {
		return errs
	}
	return nil
}

// inputStream returns the published input stream, or nil.
func (c *Connection) inputStream() InputStream {
	ref := c.input.Load()
	if ref == nil {
		return nil
	}
	return ref.s
}

func (c *Connection) sent(what string, err error) {
	if err != nil {
		c.log.Debug(pkg+"could not send "+what, "error", err.Error())
	}
}

// SendMouseMove sends a relative mouse movement. The Send methods do nothing
// until the input stream has started.
func (c *Connection) SendMouseMove(dx, dy int16) {
	if in := c.inputStream(); in != nil {
		c.sent("mouse move", in.SendMouseMove(dx, dy))
	}
}

func (c *Connection) SendMouseButtonDown(button uint8) {
	if in := c.inputStream(); in != nil {
		c.sent("mouse button down", in.SendMouseButtonDown(button))
	}
}

func (c *Connection) SendMouseButtonUp(button uint8) {
	if in := c.inputStream(); in != nil {
		c.sent("mouse button up", in.SendMouseButtonUp(button))
	}
}

func (c *Connection) SendControllerInput(s ControllerState) {
	if in := c.inputStream(); in != nil {
		c.sent("controller input", in.SendControllerInput(s))
	}
}

func (c *Connection) SendMultiControllerInput(controller int16, s ControllerState) {
	if in := c.inputStream(); in != nil {
		c.sent("controller input", in.SendMultiControllerInput(controller, s))
	}
}

func (c *Connection) SendKeyboardInput(key int16, direction, modifier uint8) {
	if in := c.inputStream(); in != nil {
		c.sent("keyboard input", in.SendKeyboardInput(key, direction, modifier))
	}
}

func (c *Connection) SendMouseScroll(clicks int8) {
	if in := c.inputStream(); in != nil {
		c.sent("mouse scroll", in.SendMouseScroll(clicks))
	}
}
