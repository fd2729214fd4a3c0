package debugserver

import (
	"github.com/treeform/nimmy/pkg/interactive"
)

func (c *Connection) handle(cmd *Command) {
	switch cmd.Type {
	case CommandLoad:
		if err := c.session.Load(cmd.Source); err != nil {
			c.send <- &Event{Type: EventError, Message: err.Error()}
			return
		}
		c.send <- c.stateEvent()

	case CommandStepInto:
		c.step(c.session.StepInto)
	case CommandStepOver:
		c.step(c.session.StepOver)
	case CommandStepOut:
		c.step(c.session.StepOut)
	case CommandContinue:
		c.step(c.session.Continue)

	case CommandAddBreakpoint:
		c.session.AddBreakpoint(cmd.Line)
		c.send <- c.stateEvent()
	case CommandRemBreakpoint:
		c.session.RemoveBreakpoint(cmd.Line)
		c.send <- c.stateEvent()

	case CommandLocals:
		c.send <- c.stateEvent()

	case CommandEval:
		evaluator := interactive.New(c.session.VM(), nil)
		result, err := evaluator.Eval(cmd.Expression)
		if err != nil {
			c.send <- &Event{Type: EventError, Message: err.Error()}
			return
		}
		if result.Err != nil {
			c.send <- &Event{Type: EventError, Message: result.Err.Error()}
			return
		}
		c.send <- &Event{Type: EventEval, Result: result.Value}

	default:
		c.send <- &Event{Type: EventError, Message: "unknown command: " + string(cmd.Type)}
	}
}

func (c *Connection) step(fn func() error) {
	if err := fn(); err != nil {
		c.send <- &Event{Type: EventError, Message: err.Error()}
		return
	}
	c.send <- c.stateEvent()
}

func (c *Connection) stateEvent() *Event {
	return &Event{
		Type:        EventState,
		Line:        c.session.CurrentLine(),
		CallDepth:   c.session.CallDepth(),
		Finished:    !c.session.IsPaused(),
		Locals:      c.session.Locals(),
		Breakpoints: c.session.Breakpoints(),
		Output:      c.session.VM().Output(),
	}
}
