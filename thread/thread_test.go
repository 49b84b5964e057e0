package thread

import (
	"testing"
	"time"
)

func TestRunInvokesFunction(t *testing.T) {
	th := New("test-worker")
	invoked := make(chan bool, 1)

	go th.Run(func(self *Thread) {
		invoked <- true
	})

	select {
	case <-invoked:
	case <-time.After(time.Second):
		t.Fatal("Run did not invoke fn within timeout")
	}
	th.Wait()
	if th.IsRunning() {
		t.Fatal("IsRunning() = true after Run returned")
	}
}

func TestRequestStopIsObservedInside(t *testing.T) {
	th := New("stoppable")
	stopped := make(chan bool, 1)

	go th.Run(func(self *Thread) {
		for !self.ShouldStop() {
			time.Sleep(time.Millisecond)
		}
		stopped <- true
	})

	time.Sleep(5 * time.Millisecond)
	th.RequestStop()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("ShouldStop was never observed as true")
	}
}

func TestHandlesAreUnique(t *testing.T) {
	a := New("a")
	b := New("b")
	if a.Handle() == b.Handle() {
		t.Fatalf("New() produced duplicate handles: %v == %v", a.Handle(), b.Handle())
	}
}

func TestNameDefaultsWhenEmpty(t *testing.T) {
	th := New("")
	if th.Name() == "" {
		t.Fatal("New(\"\") left the thread unnamed")
	}
}
