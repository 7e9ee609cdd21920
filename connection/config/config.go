/*
NAME
  config.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the stream configuration of a connection.
package config

import (
	"errors"

	"github.com/ausocean/utils/logging"
)

// Config provides parameters relevant to a streaming connection. A new config
// must have a Logger; other fields that are unset or invalid are defaulted by
// Validate.
type Config struct {
	// App is the name of the application to stream, as it appears in the
	// host's app list.
	App string

	// Width and Height are the requested stream resolution in pixels.
	Width  uint
	Height uint

	FrameRate uint // FrameRate is the requested stream frame rate in frames per second.
	Bitrate   uint // Bitrate is the requested stream bitrate in kbps.

	// PacketSize is the maximum video packet payload size in bytes requested
	// of the host.
	PacketSize uint

	// Host ports for the RTSP handshake and the video and audio streams.
	RTSPPort  uint
	VideoPort uint
	AudioPort uint

	// DirectSubmit permits decode units to be submitted directly to the
	// renderer from the packet receive path when the renderer supports it.
	DirectSubmit bool

	// Logger holds an implementation of the Logger interface.
	Logger logging.Logger

	// LogLevel is the logging verbosity level.
	// Valid values are defined by enums from the logger package: logging.Debug,
	// logging.Info, logging.Warning logging.Error, logging.Fatal.
	LogLevel int8
}

var errNoLogger = errors.New("config has no logger")

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined.
func (c *Config) Validate() error {
	if c.Logger == nil {
		return errNoLogger
	}
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	c.Logger.SetLevel(c.LogLevel)
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

// LogInvalidField logs that the named field is being defaulted to def.
func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
