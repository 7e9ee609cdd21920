/*
NAME
  listener.go

DESCRIPTION
  listener.go provides the connection stages and the Listener through which
  a connection reports its progress.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package connection

// StageID identifies a connection establishment stage.
type StageID int

// Establishment stages, in the order they run.
const (
	StageLaunchApp StageID = iota
	StageRTSPHandshake
	StageControlStart
	StageVideoStart
	StageAudioStart
	StageInputStart
)

// stages is the establishment order.
var stages = [...]StageID{
	StageLaunchApp,
	StageRTSPHandshake,
	StageControlStart,
	StageVideoStart,
	StageAudioStart,
	StageInputStart,
}

var stageNames = [...]string{
	StageLaunchApp:     "app",
	StageRTSPHandshake: "RTSP handshake",
	StageControlStart:  "control connection establishment",
	StageVideoStart:    "video stream establishment",
	StageAudioStart:    "audio stream establishment",
	StageInputStart:    "input connection establishment",
}

func (id StageID) String() string {
	if id < 0 || int(id) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[id]
}

// Stage describes a running stage. Name is the label shown to the user; for
// StageLaunchApp it is the name of the app being launched.
type Stage struct {
	ID   StageID
	Name string
}

func (s Stage) String() string { return s.Name }

// Listener is notified of the progress of a connection. Stage notifications
// are delivered in order from a single goroutine.
type Listener interface {
	StageStarting(Stage)
	StageComplete(Stage)
	StageFailed(Stage)

	ConnectionStarted()

	// ConnectionTerminated is called when the connection ends before any
	// stage runs, e.g. because the host could not be resolved.
	ConnectionTerminated(error)

	// DisplayMessage shows a message explaining why the connection failed.
	DisplayMessage(string)

	// DisplayTransientMessage shows an advisory message. The connection
	// continues.
	DisplayTransientMessage(string)
}
