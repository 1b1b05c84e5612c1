package vm

// devices.go has the device capability interface and two concrete, in-memory devices used to
// exercise it without requiring a real terminal.

import (
	"fmt"
	"sync"
)

// Driver is the capability set a device exposes to the kernel's device registry. Every device
// answers these four questions about itself; whether it additionally supports reading and/or
// writing is discovered with a type assertion to [Reader] / [Writer] (an optional-interface idiom).
type Driver interface {
	fmt.Stringer

	// Shareable reports whether the device admits more than one concurrent opener.
	Shareable() bool

	// Readable reports whether the device supports READ.
	Readable() bool

	// Writeable reports whether the device supports WRITE.
	Writeable() bool

	// Available reports whether the device can accept a new READ or WRITE right now. A busy
	// device causes the dispatcher to retry the syscall later.
	Available() bool
}

// Reader is a Driver that can start an asynchronous read. StartRead begins the operation; its
// result is delivered later as a [ReadDone] event on the interrupt controller.
type Reader interface {
	Driver
	StartRead(addr Word)
}

// Writer is a Driver that can start an asynchronous write. StartWrite begins the operation; its
// completion is delivered later as a [WriteDone] event on the interrupt controller.
type Writer interface {
	Driver
	StartWrite(addr Word, data Word)
}

// Console is a simple, non-shareable, readable and writeable device modeling a terminal: bytes
// written to it accumulate in an output buffer; bytes read from it come from an input queue fed by
// [Console.Feed]. Every operation completes on the same tick it starts, which keeps device behavior
// deterministic in tests; [github.com/moynes-sim/elsos/internal/tty] bridges a Console to a real
// terminal for interactive use.
type Console struct {
	id  int
	int *InterruptController

	mu     sync.Mutex
	input  []Word
	output []Word
	busy   bool
}

// NewConsole creates a console device that posts completion events to ic under id.
func NewConsole(id int, ic *InterruptController) *Console {
	return &Console{id: id, int: ic}
}

func (c *Console) String() string { return fmt.Sprintf("Console(id:%d)", c.id) }

func (c *Console) Shareable() bool { return false }
func (c *Console) Readable() bool  { return true }
func (c *Console) Writeable() bool { return true }

func (c *Console) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.busy
}

// Feed appends words to the console's input queue, to be returned by subsequent reads.
func (c *Console) Feed(words ...Word) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.input = append(c.input, words...)
}

// Output returns and clears everything written to the console so far.
func (c *Console) Output() []Word {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.output
	c.output = nil

	return out
}

func (c *Console) StartRead(addr Word) {
	c.mu.Lock()

	var data Word
	if len(c.input) > 0 {
		data = c.input[0]
		c.input = c.input[1:]
	}

	c.mu.Unlock()

	c.int.Post(Event{Kind: ReadDone, Dev: c.id, Addr: addr, Data: data})
}

func (c *Console) StartWrite(addr Word, data Word) {
	c.mu.Lock()
	c.output = append(c.output, data)
	c.mu.Unlock()

	c.int.Post(Event{Kind: WriteDone, Dev: c.id, Addr: addr})
}

// Tape is a shareable, read-only device that serves words from fixed content. Many processes may
// open it at once; writes are never supported.
type Tape struct {
	id      int
	int     *InterruptController
	content []Word

	mu  sync.Mutex
	pos int
}

// NewTape creates a read-only, shareable device serving content in order, wrapping around when
// exhausted.
func NewTape(id int, ic *InterruptController, content []Word) *Tape {
	return &Tape{id: id, int: ic, content: content}
}

func (t *Tape) String() string { return fmt.Sprintf("Tape(id:%d)", t.id) }

func (t *Tape) Shareable() bool { return true }
func (t *Tape) Readable() bool  { return true }
func (t *Tape) Writeable() bool { return false }
func (t *Tape) Available() bool { return true }

func (t *Tape) StartRead(addr Word) {
	t.mu.Lock()

	var data Word
	if len(t.content) > 0 {
		data = t.content[t.pos%len(t.content)]
		t.pos++
	}

	t.mu.Unlock()

	t.int.Post(Event{Kind: ReadDone, Dev: t.id, Addr: addr, Data: data})
}
