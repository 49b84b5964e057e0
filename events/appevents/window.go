// Package appevents is the concrete event catalog an application built on
// the engine core actually emits: window lifecycle and raw input, on top
// of the generic events package. Grounded on WindowEvents.hpp and
// InputEvents.hpp: the same event set, the same per-type execution mode
// and priority choices, registered here instead of expressed as C++
// template specializations.
package appevents

import (
	"fmt"

	"oss.nandlabs.io/enginecore/events"
	"oss.nandlabs.io/enginecore/jobs"
)

// Category bits. Application and Input are independent flags; Keyboard and
// Mouse further qualify Input the same way EventCategory does in
// EventTypes.hpp.
const (
	CategoryApplication events.Category = 1 << iota
	CategoryInput
	CategoryKeyboard
	CategoryMouse
)

// WindowClose is emitted when the OS asks the application window to
// close (clicking the X, Alt+F4, and similar). Immediate and Critical so
// shutdown handling runs before Emit returns, in the emitting thread.
type WindowClose struct{}

// WindowResized carries the window's new client-area dimensions.
// Immediate and Critical: the rendering surface must be resized before
// the next frame can safely present.
type WindowResized struct {
	Width  uint32
	Height uint32
}

// AspectRatio returns Width/Height, or 1 if Height is zero.
func (e WindowResized) AspectRatio() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// IsValid reports whether both dimensions are nonzero.
func (e WindowResized) IsValid() bool {
	return e.Width > 0 && e.Height > 0
}

func (e WindowResized) String() string {
	return fmt.Sprintf("WindowResized: %d x %d", e.Width, e.Height)
}

// WindowFocus is emitted when the application window becomes the active
// window. Deferred and Normal: resuming audio or game logic can wait
// until the next main-thread frame tick.
type WindowFocus struct{}

// WindowLostFocus is emitted when the application window stops being the
// active window.
type WindowLostFocus struct{}

// WindowMoved carries the window's new desktop position. Deferred and
// Low: position bookkeeping is the least time-critical window event.
type WindowMoved struct {
	X int32
	Y int32
}

func (e WindowMoved) String() string {
	return fmt.Sprintf("WindowMoved: %d, %d", e.X, e.Y)
}

func init() {
	events.RegisterEventType[WindowClose](events.Traits{
		Mode:               events.Immediate,
		Priority:           jobs.PriorityCritical,
		RequiresMainThread: true,
		Category:           CategoryApplication,
	})
	events.RegisterEventType[WindowResized](events.Traits{
		Mode:               events.Immediate,
		Priority:           jobs.PriorityCritical,
		RequiresMainThread: true,
		Category:           CategoryApplication,
	})
	events.RegisterEventType[WindowFocus](events.Traits{
		Mode:               events.Deferred,
		Priority:           jobs.PriorityNormal,
		RequiresMainThread: true,
		Category:           CategoryApplication,
	})
	events.RegisterEventType[WindowLostFocus](events.Traits{
		Mode:               events.Deferred,
		Priority:           jobs.PriorityNormal,
		RequiresMainThread: true,
		Category:           CategoryApplication,
	})
	events.RegisterEventType[WindowMoved](events.Traits{
		Mode:               events.Deferred,
		Priority:           jobs.PriorityLow,
		RequiresMainThread: true,
		Category:           CategoryApplication,
	})
}
