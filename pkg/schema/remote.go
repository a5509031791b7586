package schema

import "time"

// Remote channel commands.
const (
	CmdUnlock    = "unlock"
	CmdStartCall = "start_call"
	CmdEndCall   = "end_call"
)

// RemoteCommand arrives on the per-user command topic.
type RemoteCommand struct {
	Cmd    string `json:"cmd"`
	RoomID string `json:"room_id,omitempty"`
}

// Co-processor statuses.
const (
	VisionMatch    = "match"
	VisionIntruder = "intruder"
	VisionAwake    = "awake"
)

// VisionStatus is one line of the co-processor status stream.
type VisionStatus struct {
	Status string `json:"status"`
	Name   string `json:"name,omitempty"`
}

// Co-processor commands.
const (
	VisionCmdOn             = "on"
	VisionCmdStartCall      = "start_call"
	VisionCmdSetCallTimeout = "set_call_timeout"
	VisionCmdSetSnippetTime = "set_snippet_time"
	VisionCmdSetVidQuality  = "set_vid_quality"
)

// VisionCommand is written to the co-processor as one JSON line.
// FaceTimeout asks it to skip face recognition during an extended
// lockout.
type VisionCommand struct {
	Cmd         string `json:"cmd"`
	RoomID      string `json:"room_id,omitempty"`
	CallTimeout *int   `json:"call_timeout,omitempty"`
	SnippetTime *int   `json:"snippet_time,omitempty"`
	VidQuality  *int   `json:"vid_quality,omitempty"`
	FaceTimeout bool   `json:"face_timeout,omitempty"`
}

// Event is a telemetry record published on the log topic.
type Event struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	LockID    string         `json:"lock_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}
