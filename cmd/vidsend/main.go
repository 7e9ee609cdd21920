/*
DESCRIPTION
  vidsend sends an H.264 Annex-B file as a game stream video sub-stream,
  for exercising receivers such as vidrecv.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// vidsend is a video sub-stream sender.
package main

import (
	"context"
	"flag"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ausocean/gamestream/codec/h264"
	"github.com/ausocean/gamestream/protocol/rtp"
	"github.com/ausocean/gamestream/video"
	"github.com/ausocean/utils/logging"
)

const (
	pkg          = "vidsend: "
	logVerbosity = logging.Info
	logSuppress  = false
)

func main() {
	var (
		inPtr     = flag.String("in", "", "H.264 Annex-B file to send")
		addrPtr   = flag.String("addr", "localhost:47998", "receiver address")
		fpsPtr    = flag.Int("fps", 60, "frame rate to send at")
		packetPtr = flag.Int("packet", video.DefaultPacketSize, "maximum video packet payload size")
	)
	flag.Parse()

	log := logging.New(logVerbosity, os.Stderr, logSuppress)

	if *inPtr == "" {
		log.Fatal(pkg + "no input file, use -in")
	}
	if *fpsPtr <= 0 {
		log.Fatal(pkg+"invalid frame rate", "fps", *fpsPtr)
	}
	f, err := os.Open(*inPtr)
	if err != nil {
		log.Fatal(pkg+"could not open input", "error", err.Error())
	}
	defer f.Close()

	conn, err := net.Dial("udp", *addrPtr)
	if err != nil {
		log.Fatal(pkg+"could not dial receiver", "error", err.Error())
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := &sender{
		rtp:  rtp.NewSender(conn, *fpsPtr),
		pz:   video.NewPacketizer(*packetPtr),
		rate: video.NewRateMeter(),
		log:  log,
	}
	aus := make(chan []byte)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(aus)
		err := h264.Lex(&chanWriter{ctx: ctx, c: aus}, f, time.Second/time.Duration(*fpsPtr))
		if err == io.EOF {
			return nil
		}
		return err
	})
	g.Go(func() error { return s.run(ctx, aus) })

	err = g.Wait()
	if err != nil && err != context.Canceled {
		log.Fatal(pkg+"could not send stream", "error", err.Error())
	}
	log.Info(pkg+"done", "units", s.units, "bitrate", s.rate.Bitrate())
}

// chanWriter sends each write on c. Lex does not reuse written slices.
type chanWriter struct {
	ctx context.Context
	c   chan<- []byte
}

func (w *chanWriter) Write(b []byte) (int, error) {
	select {
	case w.c <- b:
		return len(b), nil
	case <-w.ctx.Done():
		return 0, w.ctx.Err()
	}
}

type sender struct {
	rtp   *rtp.Sender
	pz    *video.Packetizer
	log   logging.Logger
	rate  *video.RateMeter
	units int
}

// run packetizes and sends access units from aus until it is closed.
func (s *sender) run(ctx context.Context, aus <-chan []byte) error {
	var buf []byte
	for {
		var au []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-aus:
			if !ok {
				return nil
			}
			au = b
		}

		for _, p := range s.pz.Packetize(au) {
			buf = p.Bytes(buf[:0])
			err := s.rtp.Send(buf, p.EOF())
			if err != nil {
				return err
			}
			s.rate.Report(len(buf))
		}
		s.rtp.Tick()
		s.units++
		s.log.Debug(pkg+"sent access unit", "length", len(au))
	}
}
