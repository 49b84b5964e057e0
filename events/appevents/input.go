package appevents

import (
	"fmt"

	"oss.nandlabs.io/enginecore/events"
	"oss.nandlabs.io/enginecore/jobs"
)

// KeyPressed is emitted once per key-down, and again on every OS repeat
// while the key is held, with RepeatCount incrementing each time.
type KeyPressed struct {
	KeyCode     int
	RepeatCount int
}

// IsRepeat reports whether this is an OS auto-repeat rather than the
// initial key-down.
func (e KeyPressed) IsRepeat() bool {
	return e.RepeatCount > 0
}

func (e KeyPressed) String() string {
	return fmt.Sprintf("KeyPressed: %d (%d repeats)", e.KeyCode, e.RepeatCount)
}

// KeyReleased is emitted once when a held key is released.
type KeyReleased struct {
	KeyCode int
}

// MouseMoved carries the cursor's new position in window client
// coordinates.
type MouseMoved struct {
	X uint32
	Y uint32
}

func (e MouseMoved) String() string {
	return fmt.Sprintf("MouseMoved: %d, %d", e.X, e.Y)
}

// MouseButtonPressed is emitted on mouse button down.
type MouseButtonPressed struct {
	X      uint32
	Y      uint32
	Button uint32
}

// MouseButtonReleased is emitted on mouse button up.
type MouseButtonReleased struct {
	X      uint32
	Y      uint32
	Button uint32
}

// MouseScrolled carries wheel delta along both axes, at the cursor
// position when the scroll occurred.
type MouseScrolled struct {
	X      uint32
	Y      uint32
	XDelta float32
	YDelta float32
}

func init() {
	keyboardTraits := events.Traits{
		Mode:               events.Deferred,
		Priority:           jobs.PriorityNormal,
		RequiresMainThread: true,
		Category:           CategoryInput | CategoryKeyboard,
	}
	events.RegisterEventType[KeyPressed](keyboardTraits)
	events.RegisterEventType[KeyReleased](keyboardTraits)

	mouseTraits := events.Traits{
		Mode:               events.Deferred,
		Priority:           jobs.PriorityNormal,
		RequiresMainThread: true,
		Category:           CategoryInput | CategoryMouse,
	}
	events.RegisterEventType[MouseMoved](mouseTraits)
	events.RegisterEventType[MouseButtonPressed](mouseTraits)
	events.RegisterEventType[MouseButtonReleased](mouseTraits)
	events.RegisterEventType[MouseScrolled](mouseTraits)
}
