/*
NAME
  handshake.go

DESCRIPTION
  handshake.go provides Handshaker, which performs the RTSP exchange that
  sets up the video and audio channels of a streaming session.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package rtsp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ausocean/utils/logging"
)

const pkg = "rtsp: "

// DefaultPort is the host's RTSP port.
const DefaultPort = 48010

const defaultTimeout = 10 * time.Second

// Stream identifiers used as SETUP tracks.
const (
	VideoTrack = "streamid=video"
	AudioTrack = "streamid=audio"
)

// StatusError is returned when the host answers a handshake request with a
// status other than 200.
type StatusError struct {
	Step string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rtsp %s failed with status %d", e.Step, e.Code)
}

// Handshaker negotiates stream channels with a host over RTSP. The exchange
// is OPTIONS, DESCRIBE, SETUP for video then audio, then PLAY. Any error or
// non-200 status fails the handshake as a whole.
type Handshaker struct {
	Port          int           // Host RTSP port, DefaultPort if zero.
	ClientVersion int           // Sent as X-GS-ClientVersion if non-zero.
	VideoPort     int           // Advertised client video port.
	AudioPort     int           // Advertised client audio port.
	Timeout       time.Duration // Whole exchange timeout, defaultTimeout if zero.
	Log           logging.Logger
}

// Handshake performs the handshake with host.
func (h *Handshaker) Handshake(ctx context.Context, host net.IP) error {
	port := h.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := h.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := "rtsp://" + net.JoinHostPort(host.String(), strconv.Itoa(port))
	c, err := NewClient(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", addr, err)
	}
	defer c.Close()

	deadline, _ := ctx.Deadline()
	err = c.SetDeadline(deadline)
	if err != nil {
		return fmt.Errorf("could not set deadline: %w", err)
	}
	// Unblock any pending read or write on cancellation.
	stop := context.AfterFunc(ctx, func() { c.SetDeadline(time.Now()) })
	defer stop()

	if h.ClientVersion != 0 {
		c.Header.Set("X-GS-ClientVersion", strconv.Itoa(h.ClientVersion))
	}

	steps := []struct {
		name string
		do   func() (*Response, error)
	}{
		{"OPTIONS", c.Options},
		{"DESCRIBE", c.Describe},
		{"SETUP video", func() (*Response, error) { return c.Setup(VideoTrack, transport(h.VideoPort)) }},
		{"SETUP audio", func() (*Response, error) { return c.Setup(AudioTrack, transport(h.AudioPort)) }},
		{"PLAY", c.Play},
	}
	for _, step := range steps {
		h.log(logging.Debug, pkg+"sending request", "step", step.name)
		resp, err := step.do()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("rtsp %s: %w", step.name, ctx.Err())
			}
			return fmt.Errorf("rtsp %s: %w", step.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 200 {
			return &StatusError{Step: step.name, Code: resp.StatusCode}
		}
	}
	h.log(logging.Info, pkg+"handshake complete", "host", addr, "session", c.Session())
	return nil
}

func (h *Handshaker) log(lvl int8, msg string, args ...interface{}) {
	if h.Log == nil {
		return
	}
	h.Log.Log(lvl, msg, args...)
}

func transport(port int) string {
	if port == 0 {
		return "unicast"
	}
	return fmt.Sprintf("RTP/AVP;unicast;client_port=%d-%d", port, port+1)
}
