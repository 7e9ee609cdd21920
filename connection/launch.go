/*
NAME
  launch.go

DESCRIPTION
  launch.go provides the app launch stage: host version and pairing checks,
  followed by resuming, relaunching or launching the requested app.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package connection

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Supported host major versions.
const (
	minMajorVersion = 3
	maxMajorVersion = 4
)

// Messages shown to the user.
const (
	msgNoMajorVersion  = "Server major version not present"
	msgUpgradeRequired = "This client requires GeForce Experience 2.2.2 or later. Please upgrade GFE on your PC and try again."
	msgUnsupported     = "This version of GFE is not currently supported. You may experience issues until this client is updated."
	msgMalformed       = "Server version malformed: "
	msgNotPaired       = "Device not paired with computer"
	msgResumeFailed    = "Failed to resume existing session"
	msgResumeForbidden = "This session wasn't started by this device, so it cannot be resumed. End streaming on the original device or the PC itself and try again. (Error code: %d)"
	msgAppMinimized    = "The application is minimized. Resume it on the PC manually or quit the session and start streaming again."
	msgQuitFailed      = "Failed to quit previous session! You must quit it manually"
	msgLaunchFailed    = "Failed to launch application"
)

// failure is a stage failure that has already been shown to the user.
type failure struct{ msg string }

func (f *failure) Error() string { return f.msg }

// fail shows msg to the user and returns it as a stage failure.
func (c *Connection) fail(msg string) error {
	c.cc.Listener.DisplayMessage(msg)
	return &failure{msg: msg}
}

// launchApp checks the host and gets the configured app running, resuming
// it if it is already running.
func (c *Connection) launchApp(ctx context.Context) error {
	s := c.co.Session

	info, err := s.ServerInfo(ctx, c.uniqueID)
	if err != nil {
		return errors.Wrap(err, "could not get server info")
	}
	ver, err := s.ServerVersion(info)
	if err != nil {
		return errors.Wrap(err, "could not get server version")
	}
	dot := strings.IndexByte(ver, '.')
	if dot < 0 {
		return c.fail(msgNoMajorVersion)
	}
	major, err := strconv.Atoi(ver[:dot])
	if err != nil {
		return c.fail(msgMalformed + ver)
	}
	switch {
	case major < minMajorVersion:
		return c.fail(msgUpgradeRequired)
	case major > maxMajorVersion:
		c.cc.Listener.DisplayTransientMessage(msgUnsupported)
	}
	if major == 3 {
		c.cc.ServerGeneration = Generation3
	} else {
		c.cc.ServerGeneration = Generation4
	}
	c.log.Info(pkg+"server version", "major", major, "generation", c.cc.ServerGeneration.String())

	ps, err := s.PairState(info)
	if err != nil {
		return errors.Wrap(err, "could not get pair state")
	}
	if ps != Paired {
		return c.fail(msgNotPaired)
	}

	name := c.cc.Config.App
	app, err := s.App(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "could not get app %q", name)
	}
	if app == nil {
		return c.fail("The app " + name + " is not in GFE app list")
	}

	cur, err := s.CurrentGame(info)
	if err != nil {
		return errors.Wrap(err, "could not get current game")
	}
	if cur == 0 {
		return c.launch(ctx, app)
	}

	err = c.resumeOrRelaunch(ctx, app, cur)
	var re *ResponseError
	if errors.As(err, &re) {
		switch re.Code {
		case CodeResumeForbidden:
			return c.fail(fmt.Sprintf(msgResumeForbidden, re.Code))
		case CodeAppMinimized:
			return c.fail(msgAppMinimized)
		}
	}
	return err
}

// resumeOrRelaunch resumes app if it is the running app cur, otherwise it
// quits cur and launches app.
func (c *Connection) resumeOrRelaunch(ctx context.Context, app *App, cur int) error {
	s := c.co.Session
	if cur != app.ID {
		ok, err := s.QuitApp(ctx)
		if err != nil {
			return errors.Wrap(err, "could not quit app")
		}
		if !ok {
			return c.fail(msgQuitFailed)
		}
		return c.launch(ctx, app)
	}

	ok, err := s.ResumeApp(ctx, c.cc)
	if err != nil {
		return errors.Wrap(err, "could not resume app")
	}
	if !ok {
		return c.fail(msgResumeFailed)
	}
	c.log.Info(pkg+"resumed existing session", "app", app.Name)
	return nil
}

func (c *Connection) launch(ctx context.Context, app *App) error {
	id, err := c.co.Session.LaunchApp(ctx, c.cc, app.ID)
	if err != nil {
		return errors.Wrap(err, "could not launch app")
	}
	if id == 0 {
		return c.fail(msgLaunchFailed)
	}
	c.log.Info(pkg+"launched new session", "app", app.Name, "session", id)
	return nil
}
