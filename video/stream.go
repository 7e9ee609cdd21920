/*
NAME
  stream.go

DESCRIPTION
  stream.go provides Stream, the video sub-stream. It receives RTP carried
  video packets from the host, feeds them to a Depacketizer and drives a
  Renderer with the resulting decode units.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package video

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ausocean/gamestream/codec/codecutil"
	"github.com/ausocean/gamestream/protocol/rtp"
	"github.com/ausocean/utils/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultPort is the host's video port.
const DefaultPort = 47998

const pingInterval = time.Second

var pingPayload = []byte("PING")

// StreamContext holds what the video sub-stream needs to know about the
// connection.
type StreamContext struct {
	// ServerAddress is the host address. If nil, no pings are sent.
	ServerAddress net.IP

	// Port is the host video port. Packets are received on the same local
	// port unless LocalAddr is set.
	Port int

	// LocalAddr optionally overrides the receive address, e.g. "localhost:0".
	LocalAddr string

	Width, Height, FrameRate int

	// DirectSubmit permits direct submission to renderers offering
	// CapabilityDirectSubmit.
	DirectSubmit bool
}

// Stream is the video sub-stream.
type Stream struct {
	ctx  StreamContext
	ctrl StatusListener
	log  logging.Logger

	client   *rtp.Client
	depack   *Depacketizer
	renderer Renderer
	rate     *RateMeter

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	aborted bool
}

// NewStream returns a new video Stream. ctrl is told about received frames
// and loss, it may be nil.
func NewStream(c StreamContext, ctrl StatusListener, log logging.Logger) *Stream {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	return &Stream{ctx: c, ctrl: ctrl, log: log, rate: NewRateMeter()}
}

// Initialize opens the receive socket. It fails once the stream has been
// aborted.
func (s *Stream) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return errors.New("video stream aborted")
	}
	if s.client != nil {
		return errors.New("video stream already initialized")
	}

	addr := s.ctx.LocalAddr
	if addr == "" {
		addr = ":" + strconv.Itoa(s.ctx.Port)
	}
	c, err := rtp.NewClient(addr)
	if err != nil {
		return fmt.Errorf("could not open video socket: %w", err)
	}
	s.client = c
	s.log.Debug(pkg+"video socket open", "addr", c.LocalAddr().String())
	return nil
}

// StartVideoStream sets up and starts r, rendering to target, and starts
// receiving. If r is nil decode units are left for the caller to pull with
// Depacketizer().NextDecodeUnit.
func (s *Stream) StartVideoStream(r Renderer, target interface{}, flags int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return errors.New("video stream aborted")
	}
	if s.client == nil {
		return errors.New("video stream not initialized")
	}
	if s.group != nil {
		return errors.New("video stream already started")
	}

	var direct DirectSubmitter
	if r != nil {
		err := r.Setup(s.ctx.Width, s.ctx.Height, s.ctx.FrameRate, target, flags)
		if err != nil {
			return fmt.Errorf("could not set up renderer: %w", err)
		}
		if s.ctx.DirectSubmit && r.Capabilities()&CapabilityDirectSubmit != 0 {
			s.log.Info(pkg + "using direct submit")
			direct = r
		}
		err = r.Start()
		if err != nil {
			r.Release()
			return fmt.Errorf("could not start renderer: %w", err)
		}
		s.renderer = r
	}
	s.depack = NewDepacketizer(direct, s.ctrl, s.log)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)

	s.group.Go(func() error { return s.receive(ctx) })
	if r != nil && direct == nil {
		s.group.Go(func() error { return s.decode(ctx, r) })
	}
	if s.ctx.ServerAddress != nil {
		s.group.Go(func() error { return s.ping(ctx) })
	}
	return nil
}

// receive reads packets until ctx is done, feeding them to the depacketizer.
func (s *Stream) receive(ctx context.Context) error {
	for {
		// Payloads are referenced by decode units so each datagram gets its
		// own buffer.
		buf := make([]byte, rtp.MaxPacketSize)
		pkt, err := s.client.ReadPacket(buf)
		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
		case rtp.IsTimeout(err):
			continue
		case errors.Is(err, net.ErrClosed):
			return fmt.Errorf("video socket closed: %w", err)
		default:
			s.log.Warning(pkg+"could not read packet", "error", err.Error())
			continue
		}

		s.rate.Report(len(pkt.Payload))
		p, err := ParsePacket(codecutil.NewDescriptor(pkt.Payload))
		if err != nil {
			s.log.Warning(pkg+"dropping malformed video packet", "error", err.Error())
			continue
		}
		s.depack.AddInputData(p)
	}
}

// decode passes queued decode units to r until ctx is done.
func (s *Stream) decode(ctx context.Context, r Renderer) error {
	for {
		du, err := s.depack.NextDecodeUnit(ctx)
		if err != nil {
			return nil
		}
		r.SubmitDecodeUnit(du)
	}
}

// ping periodically sends a datagram to the host's video port from the
// receive socket so that the host learns where to send video.
func (s *Stream) ping(ctx context.Context) error {
	dst := &net.UDPAddr{IP: s.ctx.ServerAddress, Port: s.ctx.Port}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		_, err := s.client.WriteTo(pingPayload, dst)
		if err != nil && ctx.Err() == nil {
			s.log.Debug(pkg+"could not send ping", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Depacketizer returns the stream's depacketizer, or nil if the stream has
// not been started.
func (s *Stream) Depacketizer() *Depacketizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depack
}

// Bitrate returns the received payload bitrate in bits per second since the
// previous measurement.
func (s *Stream) Bitrate() int {
	return s.rate.Bitrate()
}

// LocalAddr returns the receive address, or nil if not initialized.
func (s *Stream) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	return s.client.LocalAddr()
}

// Abort stops the stream's workers, closes the socket and stops and releases
// the renderer. Abort may be called more than once.
func (s *Stream) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return nil
	}
	s.aborted = true

	if s.cancel != nil {
		s.cancel()
	}

	var err error
	if s.client != nil {
		err = s.client.Close()
		if err != nil {
			err = fmt.Errorf("could not close video socket: %w", err)
		}
	}

	if s.group != nil {
		werr := s.group.Wait()
		if werr != nil {
			s.log.Warning(pkg+"video worker failed", "error", werr.Error())
		}
	}

	if s.renderer != nil {
		s.renderer.Stop()
		s.renderer.Release()
	}
	s.log.Info(pkg + "video stream aborted")
	return err
}
