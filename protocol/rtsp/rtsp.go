/*
NAME
  rtsp.go

DESCRIPTION
  rtsp.go provides RTSP request and response types and their wire encoding,
  see https://tools.ietf.org/html/rfc7826

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package rtsp provides an RTSP client and the RTSP handshake that
// negotiates a streaming session's channels with the host.
package rtsp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Minimum response size to be considered valid in bytes.
const minResponse = 12

// Largest response body we are willing to read.
const maxBody = 1 << 20

var errInvalidResponse = errors.New("invalid response")

// Request describes an RTSP request.
type Request struct {
	Method     string
	URL        *url.URL
	Proto      string
	ProtoMajor int
	ProtoMinor int
	Header     http.Header
	Body       []byte
}

// NewRequest returns a pointer to a new Request.
func NewRequest(method, cSeq string, u *url.URL, body []byte) (*Request, error) {
	if u == nil {
		return nil, errors.New("nil request URL")
	}
	req := &Request{
		Method:     method,
		URL:        u,
		Proto:      "RTSP",
		ProtoMajor: 1,
		ProtoMinor: 0,
		Header:     map[string][]string{"CSeq": []string{cSeq}},
		Body:       body,
	}
	if len(body) != 0 {
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	}
	return req, nil
}

// Write writes the request r to the given io.Writer w.
func (r *Request) Write(w io.Writer) error {
	_, err := io.WriteString(w, r.String())
	return err
}

// String returns a formatted string of the Request.
func (r Request) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s/%d.%d\r\n", r.Method, r.URL.String(), r.Proto, r.ProtoMajor, r.ProtoMinor)
	for k, v := range r.Header {
		for _, v := range v {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.String()
}

// Response describes an RTSP response.
type Response struct {
	Proto         string
	ProtoMajor    int
	ProtoMinor    int
	StatusCode    int
	ContentLength int
	Header        http.Header
	Body          io.ReadCloser
}

// String returns a formatted string of the Response.
func (r Response) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%d.%d %d\n", r.Proto, r.ProtoMajor, r.ProtoMinor, r.StatusCode)
	for k, v := range r.Header {
		for _, v := range v {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	return b.String()
}

// ReadResponse reads one RTSP response, including any body announced by
// Content-Length, from r. Bytes following the response are left in r.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	resp := &Response{Header: make(map[string][]string)}

	// Read the status line.
	s, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if len(s) < minResponse || !strings.HasPrefix(s, "RTSP/") {
		return nil, errInvalidResponse
	}
	resp.Proto = "RTSP"

	n, err := fmt.Sscanf(s[5:], "%d.%d %d", &resp.ProtoMajor, &resp.ProtoMinor, &resp.StatusCode)
	if err != nil || n != 3 {
		return nil, fmt.Errorf("could not Sscanf response, error: %w", err)
	}

	// Read headers up to the empty line.
	for {
		s, err = readLine(r)
		if err != nil {
			return nil, err
		}
		if s == "" {
			break
		}
		parts := strings.SplitN(s, ":", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed header line %q: %w", s, errInvalidResponse)
		}
		resp.Header.Add(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}
	// Get the content length from the header.
	resp.ContentLength, _ = strconv.Atoi(resp.Header.Get("Content-Length"))
	if resp.ContentLength < 0 || resp.ContentLength > maxBody {
		return nil, fmt.Errorf("bad content length %d: %w", resp.ContentLength, errInvalidResponse)
	}

	body := make([]byte, resp.ContentLength)
	_, err = io.ReadFull(r, body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// readLine reads a line terminated by LF or CRLF and returns it without the
// terminator.
func readLine(r *bufio.Reader) (string, error) {
	s, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && s != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}
