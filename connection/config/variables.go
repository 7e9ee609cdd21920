/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and finally, a validation function to check the validity of the
  corresponding field value in the Config.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"
)

// Config map Keys.
const (
	KeyApp          = "App"
	KeyAudioPort    = "AudioPort"
	KeyBitrate      = "Bitrate"
	KeyDirectSubmit = "DirectSubmit"
	KeyFrameRate    = "FrameRate"
	KeyHeight       = "Height"
	KeyLogging      = "logging"
	KeyPacketSize   = "PacketSize"
	KeyRTSPPort     = "RTSPPort"
	KeyVideoPort    = "VideoPort"
	KeyWidth        = "Width"
)

// Config map parameter types.
const (
	typeString = "string"
	typeUint   = "uint"
	typeBool   = "bool"
)

// Default variable values.
const (
	defaultApp        = "Steam"
	defaultWidth      = 1280
	defaultHeight     = 720
	defaultFrameRate  = 60
	defaultBitrate    = 10000 // kbps
	defaultPacketSize = 1024  // bytes
	defaultRTSPPort   = 48010
	defaultVideoPort  = 47998
	defaultAudioPort  = 48000
	defaultVerbosity  = logging.Error

	maxFrameRate  = 120
	minPacketSize = 64
	maxPacketSize = 1400
)

// Variables describes the variables that can be used for connection control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyApp,
		Type:   typeString,
		Update: func(c *Config, v string) { c.App = v },
		Validate: func(c *Config) {
			if c.App == "" {
				c.LogInvalidField(KeyApp, defaultApp)
				c.App = defaultApp
			}
		},
	},
	{
		Name:   KeyAudioPort,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.AudioPort = parseUint(KeyAudioPort, v, c) },
		Validate: func(c *Config) {
			c.AudioPort = validPort(KeyAudioPort, c.AudioPort, c, defaultAudioPort)
		},
	},
	{
		Name:   KeyBitrate,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Bitrate = parseUint(KeyBitrate, v, c) },
		Validate: func(c *Config) {
			c.Bitrate = lessThanOrEqual(KeyBitrate, c.Bitrate, 0, c, defaultBitrate)
		},
	},
	{
		Name:   KeyDirectSubmit,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.DirectSubmit = parseBool(KeyDirectSubmit, v, c) },
	},
	{
		Name:   KeyFrameRate,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.FrameRate = parseUint(KeyFrameRate, v, c) },
		Validate: func(c *Config) {
			if c.FrameRate <= 0 || c.FrameRate > maxFrameRate {
				c.LogInvalidField(KeyFrameRate, defaultFrameRate)
				c.FrameRate = defaultFrameRate
			}
		},
	},
	{
		Name:   KeyHeight,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Height = parseUint(KeyHeight, v, c) },
		Validate: func(c *Config) {
			c.Height = lessThanOrEqual(KeyHeight, c.Height, 0, c, defaultHeight)
		},
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyPacketSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.PacketSize = parseUint(KeyPacketSize, v, c) },
		Validate: func(c *Config) {
			if c.PacketSize < minPacketSize || c.PacketSize > maxPacketSize {
				c.LogInvalidField(KeyPacketSize, defaultPacketSize)
				c.PacketSize = defaultPacketSize
			}
		},
	},
	{
		Name:   KeyRTSPPort,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.RTSPPort = parseUint(KeyRTSPPort, v, c) },
		Validate: func(c *Config) {
			c.RTSPPort = validPort(KeyRTSPPort, c.RTSPPort, c, defaultRTSPPort)
		},
	},
	{
		Name:   KeyVideoPort,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.VideoPort = parseUint(KeyVideoPort, v, c) },
		Validate: func(c *Config) {
			c.VideoPort = validPort(KeyVideoPort, c.VideoPort, c, defaultVideoPort)
		},
	},
	{
		Name:   KeyWidth,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Width = parseUint(KeyWidth, v, c) },
		Validate: func(c *Config) {
			c.Width = lessThanOrEqual(KeyWidth, c.Width, 0, c, defaultWidth)
		},
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expect bool for param %s", n), "value", v)
	}
	return
}

func lessThanOrEqual(n string, v, cmp uint, c *Config, def uint) uint {
	if v <= cmp {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}

func validPort(n string, v uint, c *Config, def uint) uint {
	if v == 0 || v > 65535 {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}
