package input

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

// RobotClicker drives the real mouse through robotgo.
type RobotClicker struct {
	Button string // "left", "right" or "center"
}

// NewRobotClicker creates a clicker for button, defaulting to left.
func NewRobotClicker(button string) *RobotClicker {
	if button == "" {
		button = "left"
	}
	return &RobotClicker{Button: button}
}

// Press holds the button down.
func (r *RobotClicker) Press() error {
	if err := robotgo.Toggle(r.Button); err != nil {
		return fmt.Errorf("press %s: %w", r.Button, err)
	}
	return nil
}

// Release lets the button go.
func (r *RobotClicker) Release() error {
	if err := robotgo.Toggle(r.Button, "up"); err != nil {
		return fmt.Errorf("release %s: %w", r.Button, err)
	}
	return nil
}

// MoveTo moves the pointer to a screen position.
func (r *RobotClicker) MoveTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}
