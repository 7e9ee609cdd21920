/*
NAME
  handshake_test.go

DESCRIPTION
  handshake_test.go tests the RTSP Handshaker against a loopback server.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package rtsp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
)

// handshakeServer answers RTSP requests on a loopback listener, recording the
// request lines it sees. Requests whose line contains fail are answered
// with status 453. If stall is true no responses are sent.
type handshakeServer struct {
	l     net.Listener
	fail  string
	stall bool
	lines chan []string
}

func newHandshakeServer(t *testing.T, fail string, stall bool) *handshakeServer {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	s := &handshakeServer{l: l, fail: fail, stall: stall, lines: make(chan []string, 1)}
	go s.serve()
	return s
}

func (s *handshakeServer) port() int { return s.l.Addr().(*net.TCPAddr).Port }

func (s *handshakeServer) serve() {
	var lines []string
	defer func() { s.lines <- lines }()

	conn, err := s.l.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		req, cSeq, err := readRequest(r)
		if err != nil {
			return
		}
		line := strings.SplitN(string(req), "\r\n", 2)[0]
		lines = append(lines, line)
		if s.stall {
			continue
		}

		switch {
		case s.fail != "" && strings.Contains(line, s.fail):
			fmt.Fprintf(conn, "RTSP/1.0 453 Not Enough Bandwidth\r\nCSeq: %s\r\n\r\n", cSeq)
		case strings.HasPrefix(line, "DESCRIBE"):
			const sdp = "a=x-nv-general.featureFlags:3\r\n"
			fmt.Fprintf(conn, "RTSP/1.0 200 OK\r\nCSeq: %s\r\nContent-Length: %d\r\n\r\n%s", cSeq, len(sdp), sdp)
		case strings.HasPrefix(line, "SETUP"):
			fmt.Fprintf(conn, "RTSP/1.0 200 OK\r\nCSeq: %s\r\nSession: DEADBEEF\r\n\r\n", cSeq)
		default:
			fmt.Fprintf(conn, "RTSP/1.0 200 OK\r\nCSeq: %s\r\n\r\n", cSeq)
		}
	}
}

func TestHandshake(t *testing.T) {
	tests := []struct {
		name      string
		fail      string
		wantLines int
		wantCode  int
	}{
		{name: "success", wantLines: 5},
		{name: "audio setup refused", fail: "/" + AudioTrack, wantLines: 4, wantCode: 453},
		{name: "options refused", fail: "OPTIONS", wantLines: 1, wantCode: 453},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := newHandshakeServer(t, test.fail, false)
			defer s.l.Close()

			h := &Handshaker{Port: s.port(), ClientVersion: 11, VideoPort: 47998, AudioPort: 48000, Log: (*logging.TestLogger)(t)}
			err := h.Handshake(context.Background(), net.IPv4(127, 0, 0, 1))

			var se *StatusError
			switch {
			case test.wantCode == 0 && err != nil:
				t.Errorf("unexpected error: %v", err)
			case test.wantCode != 0 && !errors.As(err, &se):
				t.Errorf("expected status error, got: %v", err)
			case test.wantCode != 0 && se.Code != test.wantCode:
				t.Errorf("unexpected status code: got:%d want:%d", se.Code, test.wantCode)
			}

			s.l.Close()
			lines := <-s.lines
			if len(lines) != test.wantLines {
				t.Errorf("unexpected number of requests: got:%d want:%d\n%v", len(lines), test.wantLines, lines)
			}
			if test.wantCode != 0 {
				return
			}

			base := fmt.Sprintf("rtsp://127.0.0.1:%d", s.port())
			want := []string{
				"OPTIONS " + base + " RTSP/1.0",
				"DESCRIBE " + base + " RTSP/1.0",
				"SETUP " + base + "/" + VideoTrack + " RTSP/1.0",
				"SETUP " + base + "/" + AudioTrack + " RTSP/1.0",
				"PLAY " + base + " RTSP/1.0",
			}
			if diff := cmp.Diff(want, lines); diff != "" {
				t.Errorf("unexpected requests (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandshakeCancel(t *testing.T) {
	s := newHandshakeServer(t, "", true)
	defer s.l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	h := &Handshaker{Port: s.port(), Timeout: 5 * time.Second}
	start := time.Now()
	err := h.Handshake(ctx, net.IPv4(127, 0, 0, 1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error: got:%v want:%v", err, context.Canceled)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("handshake took too long to cancel: %v", time.Since(start))
	}
}

func TestHandshakeNoServer(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	h := &Handshaker{Port: port, Timeout: time.Second}
	if err := h.Handshake(context.Background(), net.IPv4(127, 0, 0, 1)); err == nil {
		t.Error("expected error connecting to closed port")
	}
}
