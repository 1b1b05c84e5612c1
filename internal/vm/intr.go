package vm

// intr.go is the interrupt controller: an unbounded FIFO queue of device-completion events that the
// CPU polls between instructions.

import (
	"fmt"
	"sync"
)

// EventKind distinguishes the two completion events devices raise.
type EventKind uint8

const (
	// ReadDone signals that a previously started READ has data ready.
	ReadDone EventKind = iota
	// WriteDone signals that a previously started WRITE has finished.
	WriteDone
)

func (k EventKind) String() string {
	if k == ReadDone {
		return "READ_DONE"
	}

	return "WRITE_DONE"
}

// Event is a single device-completion interrupt.
type Event struct {
	Kind EventKind
	Dev  int
	Addr Word
	Data Word // only meaningful for ReadDone
}

func (e Event) String() string {
	return fmt.Sprintf("INT(%s dev:%d addr:%s data:%s)", e.Kind, e.Dev, e.Addr, e.Data)
}

// InterruptController is an unbounded FIFO queue that devices post completion events to and that
// the CPU polls. CPU.Step drains exactly one event per instruction boundary; any further pending
// events wait for later boundaries, in order. Callers that want to drain the whole queue at once
// can loop Poll until it returns false.
type InterruptController struct {
	mu    sync.Mutex
	queue []Event
}

// NewInterruptController creates an empty controller.
func NewInterruptController() *InterruptController {
	return &InterruptController{}
}

// Post enqueues a completion event. Safe to call from a device's own goroutine.
func (ic *InterruptController) Post(e Event) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.queue = append(ic.queue, e)
}

// Poll dequeues the oldest pending event, if any.
func (ic *InterruptController) Poll() (Event, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if len(ic.queue) == 0 {
		return Event{}, false
	}

	e := ic.queue[0]
	ic.queue = ic.queue[1:]

	return e, true
}

// Pending reports the number of events waiting to be polled.
func (ic *InterruptController) Pending() int {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	return len(ic.queue)
}
