// Package debugserver exposes a debug.Session over a WebSocket so a
// remote client (an editor plugin, a web UI) can drive stepping and
// breakpoints without embedding the VM itself.
package debugserver

import "github.com/treeform/nimmy/pkg/value"

// CommandType identifies the action a client wants the session to take.
type CommandType string

const (
	CommandLoad          CommandType = "load"
	CommandStepInto      CommandType = "step_into"
	CommandStepOver      CommandType = "step_over"
	CommandStepOut       CommandType = "step_out"
	CommandContinue      CommandType = "continue"
	CommandAddBreakpoint CommandType = "add_breakpoint"
	CommandRemBreakpoint CommandType = "remove_breakpoint"
	CommandLocals        CommandType = "locals"
	CommandEval          CommandType = "eval"
)

// Command is a client->server request.
type Command struct {
	Type       CommandType `json:"type"`
	Source     string      `json:"source,omitempty"`
	Line       int         `json:"line,omitempty"`
	Expression string      `json:"expression,omitempty"`
}

// EventType identifies what an Event describes.
type EventType string

const (
	EventState EventType = "state"
	EventError EventType = "error"
	EventEval  EventType = "eval_result"
)

// Event is a server->client response or push notification.
type Event struct {
	Type        EventType                `json:"type"`
	Line        int                      `json:"line,omitempty"`
	CallDepth   int                      `json:"call_depth,omitempty"`
	Finished    bool                     `json:"finished,omitempty"`
	Locals      map[string]value.Value   `json:"locals,omitempty"`
	Breakpoints []int                    `json:"breakpoints,omitempty"`
	Output      []string                 `json:"output,omitempty"`
	Result      value.Value              `json:"result,omitempty"`
	Message     string                   `json:"message,omitempty"`
}
