// Package input provides interfaces and implementations for driving the mouse.
//
// The controller never touches an input backend directly: it sends Actions to
// the Actuator worker, which performs them with a Clicker.
package input

import (
	"errors"
	"fmt"
)

// Clicker presses and releases the primary mouse button.
type Clicker interface {
	Press() error
	Release() error
}

// Mover moves the pointer to a screen position.
type Mover interface {
	MoveTo(x, y int) error
}

// Click presses and releases c. The release is attempted even if the press
// failed so the button is never left held.
func Click(c Clicker) error {
	perr := c.Press()
	rerr := c.Release()
	if perr != nil || rerr != nil {
		return fmt.Errorf("click: %w", errors.Join(perr, rerr))
	}
	return nil
}

// Action is a discrete input command.
type Action int

const (
	ActionClick Action = iota + 1
	ActionPress
	ActionRelease
)

func (a Action) String() string {
	switch a {
	case ActionClick:
		return "click"
	case ActionPress:
		return "press"
	case ActionRelease:
		return "release"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Ensure implementations satisfy Clicker
var (
	_ Clicker = (*RobotClicker)(nil)
	_ Clicker = (*Recorder)(nil)
	_ Mover   = (*RobotClicker)(nil)
)
