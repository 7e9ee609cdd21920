/*
NAME
  client.go

DESCRIPTION
  client.go provides a Client type providing functionality to send RTSP requests
  of methods DESCRIBE, OPTIONS, SETUP and PLAY to an RTSP server.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

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
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client describes an RTSP Client.
type Client struct {
	cSeq      int
	addr      string
	url       *url.URL
	conn      net.Conn
	r         *bufio.Reader
	sessionID string

	// Header holds fields added to every request.
	Header http.Header
}

// NewClient returns a pointer to a new Client. The address addr will be
// parsed and a connection to the RTSP server will be made.
func NewClient(ctx context.Context, addr string) (*Client, error) {
	c := &Client{addr: addr, Header: make(http.Header)}
	var err error
	c.url, err = url.Parse(addr)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	c.conn, err = d.DialContext(ctx, "tcp", c.url.Host)
	if err != nil {
		return nil, err
	}
	c.r = bufio.NewReader(c.conn)
	return c, nil
}

// Close closes the RTSP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetDeadline sets the read and write deadline of the underlying connection.
func (c *Client) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// LocalAddr returns the local address of the RTSP connection.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Session returns the session identifier returned by the last SETUP.
func (c *Client) Session() string {
	return c.sessionID
}

// Options sends an OPTIONS request.
func (c *Client) Options() (*Response, error) {
	return c.send("OPTIONS", c.url)
}

// Describe sends a DESCRIBE request accepting an SDP description.
func (c *Client) Describe() (*Response, error) {
	return c.send("DESCRIBE", c.url, "Accept", "application/sdp")
}

// Setup sends a SETUP request for track and records the session returned by
// the server.
func (c *Client) Setup(track, transport string) (*Response, error) {
	u, err := url.Parse(c.addr + "/" + track)
	if err != nil {
		return nil, err
	}
	resp, err := c.send("SETUP", u, "Transport", transport)
	if err != nil {
		return nil, err
	}
	if s := resp.Header.Get("Session"); s != "" {
		c.sessionID = s
	}
	return resp, nil
}

// Play sends a PLAY request for the session.
func (c *Client) Play() (*Response, error) {
	return c.send("PLAY", c.url)
}

// send sends a request of method for u with the given key/value header
// fields and the session, if there is one.
func (c *Client) send(method string, u *url.URL, kv ...string) (*Response, error) {
	c.cSeq++
	req, err := NewRequest(method, strconv.Itoa(c.cSeq), u, nil)
	if err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(kv); i += 2 {
		req.Header.Add(kv[i], kv[i+1])
	}
	if c.sessionID != "" {
		req.Header.Set("Session", c.sessionID)
	}
	return c.Do(req)
}

// Do writes req with the client's header fields added and reads the
// response, which must carry the request's CSeq if it carries one at all.
func (c *Client) Do(req *Request) (*Response, error) {
	for k, v := range c.Header {
		for _, v := range v {
			req.Header.Add(k, v)
		}
	}
	err := req.Write(c.conn)
	if err != nil {
		return nil, err
	}

	resp, err := ReadResponse(c.r)
	if err != nil {
		return nil, err
	}

	// The request CSeq key is not canonical so Get can't be used.
	var want string
	if v := req.Header["CSeq"]; len(v) != 0 {
		want = v[0]
	}
	got := resp.Header.Get("CSeq")
	if want != "" && got != "" && got != want {
		return nil, fmt.Errorf("response CSeq %s does not match request CSeq %s: %w", got, want, errInvalidResponse)
	}
	return resp, nil
}
