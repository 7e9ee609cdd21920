/*
DESCRIPTION
  vidrecv receives a game stream video sub-stream and writes the reassembled
  H.264 access units to a file.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// vidrecv is a video sub-stream receiver that writes decode units to an
// Annex-B file.
package main

import (
	"flag"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/gamestream/connection/config"
	"github.com/ausocean/gamestream/video"
	"github.com/ausocean/utils/logging"
)

// Logging configuration.
const (
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logSuppress  = true
)

const (
	pkg           = "vidrecv: "
	statsInterval = 10 * time.Second
)

func main() {
	var (
		portPtr      = flag.Uint("port", video.DefaultPort, "UDP port to receive video on")
		outPtr       = flag.String("out", "out.h264", "file to write the H.264 stream to")
		logPtr       = flag.String("log", "vidrecv.log", "log file path")
		verbosityPtr = flag.String("verbosity", "Info", "logging verbosity: Debug, Info, Warning, Error or Fatal")
		directPtr    = flag.Bool("direct", false, "submit decode units from the receive path")
	)
	flag.Parse()

	// Create lumberjack logger to handle logging to file.
	fileLog := &lumberjack.Logger{
		Filename:   *logPtr,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	defer fileLog.Close()
	log := logging.New(logging.Info, io.MultiWriter(os.Stderr, fileLog), logSuppress)

	cfg := config.Config{Logger: log}
	cfg.Update(map[string]string{
		config.KeyVideoPort:    strconv.FormatUint(uint64(*portPtr), 10),
		config.KeyLogging:      *verbosityPtr,
		config.KeyDirectSubmit: strconv.FormatBool(*directPtr),
	})
	err := cfg.Validate()
	if err != nil {
		log.Fatal(pkg+"invalid config", "error", err.Error())
	}

	f, err := os.Create(*outPtr)
	if err != nil {
		log.Fatal(pkg+"could not create output file", "error", err.Error())
	}

	r := &fileRenderer{w: f, log: log, direct: cfg.DirectSubmit}
	s := video.NewStream(
		video.StreamContext{
			Port:         int(cfg.VideoPort),
			Width:        int(cfg.Width),
			Height:       int(cfg.Height),
			FrameRate:    int(cfg.FrameRate),
			DirectSubmit: cfg.DirectSubmit,
		},
		statusLogger{log},
		log,
	)
	err = s.Initialize()
	if err != nil {
		log.Fatal(pkg+"could not initialize video stream", "error", err.Error())
	}
	err = s.StartVideoStream(r, nil, 0)
	if err != nil {
		log.Fatal(pkg+"could not start video stream", "error", err.Error())
	}
	log.Info(pkg+"receiving", "addr", s.LocalAddr().String(), "out", *outPtr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-sig:
			break loop
		case <-ticker.C:
			log.Info(pkg+"stats", "bitrate", s.Bitrate(), "queued", s.Depacketizer().QueueLen(), "units", r.count())
		}
	}

	log.Info(pkg + "stopping")
	err = s.Abort()
	if err != nil {
		log.Error(pkg+"could not abort video stream", "error", err.Error())
	}
	err = f.Close()
	if err != nil {
		log.Error(pkg+"could not close output file", "error", err.Error())
	}
}

// fileRenderer is a video.Renderer that writes decode units to w.
type fileRenderer struct {
	w      io.Writer
	log    logging.Logger
	direct bool

	mu sync.Mutex
	n  int
}

func (r *fileRenderer) Setup(width, height, fps int, target interface{}, flags int) error {
	r.log.Info(pkg+"renderer setup", "width", width, "height", height, "fps", fps)
	return nil
}

func (r *fileRenderer) Start() error { return nil }
func (r *fileRenderer) Stop()        {}
func (r *fileRenderer) Release()     {}

func (r *fileRenderer) Capabilities() int {
	if r.direct {
		return video.CapabilityDirectSubmit
	}
	return 0
}

func (r *fileRenderer) SubmitDecodeUnit(du *video.DecodeUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := du.WriteTo(r.w)
	if err != nil {
		r.log.Error(pkg+"could not write decode unit", "frame", du.FrameNumber, "error", err.Error())
		return
	}
	r.n++
	if du.IsKeyFrame() || du.IsCodecConfig() {
		r.log.Debug(pkg+"wrote decode unit", "frame", du.FrameNumber, "length", du.Length, "keyframe", du.IsKeyFrame(), "config", du.IsCodecConfig())
	}
}

func (r *fileRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// statusLogger is a video.StatusListener that logs stream status.
type statusLogger struct {
	log logging.Logger
}

func (l statusLogger) FrameReceived(frame uint32) {}

func (l statusLogger) PacketsLost(from, to uint32) {
	l.log.Warning(pkg+"packets lost", "from", from, "to", to)
}

func (l statusLogger) SinkTooSlow(from, to uint32) {
	l.log.Warning(pkg+"renderer too slow, frames dropped", "from", from, "to", to)
}

func (l statusLogger) FrameLossDetected(from, to uint32) {
	l.log.Info(pkg+"recovered from frame loss", "from", from, "to", to)
}
