// Package thread is the L0 OS-thread abstraction the job scheduler's worker
// pool runs on. It gives every worker goroutine a stable handle, a name
// visible in logs and debuggers, and a best-effort scheduling priority
// hint, reduced from the original engine's std::thread wrapper down to
// what a goroutine-based runtime can actually offer: Go exposes no
// portable CPU-affinity API, so SetAffinity is a documented no-op kept for
// interface parity with the original contract.
package thread

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"oss.nandlabs.io/enginecore/l3"
)

var logger = l3.Get()

// Priority is a logical OS scheduling priority hint. It is applied with
// unix.Setpriority on platforms that support it; elsewhere it is recorded
// but otherwise inert.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Critical
)

// niceValues maps Priority to a Linux "nice" value passed to
// unix.Setpriority. Lower nice is higher scheduling priority.
var niceValues = map[Priority]int{
	Low:      10,
	Normal:   0,
	High:     -5,
	Critical: -10,
}

// Handle uniquely identifies a running or finished Thread for diagnostics.
type Handle uint32

// Invalid is the reserved handle value meaning "no thread".
const Invalid Handle = ^Handle(0)

var (
	registryMu sync.Mutex
	nextHandle atomic.Uint32
	current    sync.Map // goroutine-scoped *Thread, keyed by the Thread pointer itself
)

// Thread wraps one named, OS-backed worker goroutine. The zero value is
// not usable; construct with New.
type Thread struct {
	name     string
	handle   Handle
	priority Priority
	running  atomic.Bool
	stop     atomic.Bool
	done     chan struct{}
}

// New creates a Thread with the given name and default Normal priority. It
// does not start any goroutine; call Run to do that.
func New(name string) *Thread {
	if name == "" {
		name = "unnamed-thread"
	}
	registryMu.Lock()
	h := Handle(nextHandle.Add(1) - 1)
	registryMu.Unlock()

	return &Thread{
		name:     name,
		handle:   h,
		priority: Normal,
		done:     make(chan struct{}),
	}
}

// SetPriority records the logical priority to apply the next time Run is
// called on a not-yet-started Thread, or applies it immediately to the
// running goroutine's backing OS thread if already started.
func (t *Thread) SetPriority(p Priority) {
	t.priority = p
	if t.running.Load() {
		applyPriority(p)
	}
}

// SetAffinity is a documented no-op: Go exposes no portable API to pin a
// goroutine to a CPU core, and goroutines migrate across OS threads by
// design, so a CPU mask set here cannot be honored reliably. Kept as a
// method for interface parity with the platform thread contract this
// package is modeled on.
func (t *Thread) SetAffinity(cpuMask uint64) {
	if cpuMask != 0 {
		logger.DebugF("[thread] SetAffinity(%x) on %q is a no-op on this platform", cpuMask, t.name)
	}
}

// Run starts fn on a new goroutine, pinning it to its own OS thread with
// runtime.LockOSThread so the name and priority set below actually apply
// to the thread fn executes on, and blocks the calling goroutine until fn
// returns. Callers that want concurrency invoke Run inside their own
// "go func() { ... }()" — Run itself is synchronous, mirroring the
// original's Start-then-Join split without introducing a second API for
// "run and forget".
func (t *Thread) Run(fn func(self *Thread)) {
	defer close(t.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	t.running.Store(true)
	defer t.running.Store(false)

	setCurrentThreadName(t.name)
	applyPriority(t.priority)

	current.Store(t, struct{}{})
	defer current.Delete(t)

	logger.DebugF("[thread] %q started (handle %d)", t.name, t.handle)
	fn(t)
	logger.DebugF("[thread] %q finished", t.name)
}

// RequestStop asks the thread to stop cooperatively; fn must poll
// ShouldStop itself, there is no forced cancellation.
func (t *Thread) RequestStop() {
	t.stop.Store(true)
}

// ShouldStop reports whether RequestStop has been called.
func (t *Thread) ShouldStop() bool {
	return t.stop.Load()
}

// Wait blocks until Run has returned.
func (t *Thread) Wait() {
	<-t.done
}

// IsRunning reports whether Run is currently executing fn.
func (t *Thread) IsRunning() bool {
	return t.running.Load()
}

// Name returns the thread's diagnostic name.
func (t *Thread) Name() string {
	return t.name
}

// Handle returns the thread's stable diagnostic handle.
func (t *Thread) Handle() Handle {
	return t.handle
}

// Current returns the Thread wrapping the calling goroutine, if it was
// started via Run, and whether one was found. Workers use this to check
// ShouldStop from deep inside job code without threading a parameter
// through every call.
func Current() (*Thread, bool) {
	var found *Thread
	current.Range(func(key, _ any) bool {
		found = key.(*Thread)
		return false
	})
	return found, found != nil
}

func setCurrentThreadName(name string) {
	if name == "" {
		return
	}
	ptr := namePtr(name)
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(ptr)), 0, 0, 0); err != nil {
		logger.DebugF("[thread] could not set OS thread name to %q: %v", name, err)
	}
}

func applyPriority(p Priority) {
	nice, ok := niceValues[p]
	if !ok {
		return
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, nice); err != nil {
		logger.DebugF("[thread] could not apply priority %v (nice %d): %v", p, nice, err)
	}
}

// namePtr returns a pointer to a NUL-terminated copy of name suitable for
// passing to prctl(PR_SET_NAME, ...), which expects a pointer to at most
// 16 bytes including the terminator.
func namePtr(name string) *byte {
	if len(name) > 15 {
		name = name[:15]
	}
	b := append([]byte(name), 0)
	return &b[0]
}

// String implements fmt.Stringer for diagnostics.
func (h Handle) String() string {
	if h == Invalid {
		return "invalid"
	}
	return fmt.Sprintf("thread-%d", uint32(h))
}
