/*
DESCRIPTION
  config_test.go provides testing for the Config struct methods (Validate and Update).

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
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
)

type dumbLogger struct {
	Level int8
}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         { dl.Level = l }
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

func TestValidate(t *testing.T) {
	dl := &dumbLogger{}

	want := Config{
		Logger:     dl,
		App:        defaultApp,
		Width:      defaultWidth,
		Height:     defaultHeight,
		FrameRate:  defaultFrameRate,
		Bitrate:    defaultBitrate,
		PacketSize: defaultPacketSize,
		RTSPPort:   defaultRTSPPort,
		VideoPort:  defaultVideoPort,
		AudioPort:  defaultAudioPort,
	}

	got := Config{Logger: dl}
	err := (&got).Validate()
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	if !cmp.Equal(got, want) {
		t.Errorf("configs not equal\nwant: %v\ngot: %v", want, got)
	}
}

func TestValidateInvalid(t *testing.T) {
	dl := &dumbLogger{}

	got := Config{
		Logger:     dl,
		App:        "Desktop",
		Width:      1920,
		Height:     1080,
		FrameRate:  500,
		Bitrate:    20000,
		PacketSize: 10,
		RTSPPort:   70000,
		VideoPort:  5000,
		AudioPort:  5002,
		LogLevel:   9,
	}
	err := got.Validate()
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	want := Config{
		Logger:     dl,
		App:        "Desktop",
		Width:      1920,
		Height:     1080,
		FrameRate:  defaultFrameRate,
		Bitrate:    20000,
		PacketSize: defaultPacketSize,
		RTSPPort:   defaultRTSPPort,
		VideoPort:  5000,
		AudioPort:  5002,
		LogLevel:   defaultVerbosity,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("configs not equal (-want +got):\n%s", diff)
	}
	if dl.Level != defaultVerbosity {
		t.Errorf("logger level not set: got:%d want:%d", dl.Level, defaultVerbosity)
	}
}

func TestValidateNoLogger(t *testing.T) {
	var c Config
	if err := c.Validate(); err != errNoLogger {
		t.Errorf("unexpected error: got:%v want:%v", err, errNoLogger)
	}
}

func TestUpdate(t *testing.T) {
	updateMap := map[string]string{
		"App":          "Desktop",
		"AudioPort":    "6000",
		"Bitrate":      "20000",
		"DirectSubmit": "true",
		"FrameRate":    "30",
		"Height":       "1080",
		"logging":      "Debug",
		"PacketSize":   "1200",
		"RTSPPort":     "6010",
		"VideoPort":    "6998",
		"Width":        "1920",
		"Unknown":      "ignored",
	}

	dl := &dumbLogger{}

	want := Config{
		Logger:       dl,
		App:          "Desktop",
		AudioPort:    6000,
		Bitrate:      20000,
		DirectSubmit: true,
		FrameRate:    30,
		Height:       1080,
		LogLevel:     logging.Debug,
		PacketSize:   1200,
		RTSPPort:     6010,
		VideoPort:    6998,
		Width:        1920,
	}

	got := Config{Logger: dl}
	got.Update(updateMap)
	if !cmp.Equal(want, got) {
		t.Errorf("configs not equal\nwant: %v\ngot: %v", want, got)
	}
}
