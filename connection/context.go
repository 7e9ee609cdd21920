/*
NAME
  context.go

DESCRIPTION
  context.go provides Context, the per-connection state shared with every
  sub-stream, and generation of the connection's key material.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package connection

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/ausocean/gamestream/connection/config"
)

// Generation is the host protocol generation, derived from the host's major
// version during app launch.
type Generation int

// Host generations.
const (
	GenerationUnknown Generation = iota
	Generation3
	Generation4
)

func (g Generation) String() string {
	switch g {
	case Generation3:
		return "gen3"
	case Generation4:
		return "gen4"
	default:
		return "unknown"
	}
}

// clientVersion returns the client version announced to hosts of
// generation g during the RTSP handshake.
func (g Generation) clientVersion() int {
	switch g {
	case Generation3:
		return 10
	case Generation4:
		return 11
	default:
		return 0
	}
}

// KeySize is the size of the per-connection remote input key in bytes.
const KeySize = 16

// Context holds the state of a connection shared with its sub-streams.
//
// Fields are written only by the connection's establishment goroutine, each
// before the stage that first reads it. Sub-streams treat a Context as read
// only.
type Context struct {
	ServerAddress net.IP

	// RIKey and RIKeyID are the remote input key and its identifier, fresh
	// for every connection.
	RIKey   []byte
	RIKeyID int32

	ServerGeneration Generation

	Config   config.Config
	Listener Listener
}

// randReader is the source of key material.
var randReader io.Reader = rand.Reader

// newKey returns a fresh remote input key and key identifier.
func newKey() ([]byte, int32, error) {
	key := make([]byte, KeySize)
	_, err := io.ReadFull(randReader, key)
	if err != nil {
		return nil, 0, fmt.Errorf("could not generate key: %w", err)
	}
	var id [4]byte
	_, err = io.ReadFull(randReader, id[:])
	if err != nil {
		return nil, 0, fmt.Errorf("could not generate key id: %w", err)
	}
	return key, int32(binary.BigEndian.Uint32(id[:])), nil
}
