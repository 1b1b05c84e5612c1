// Package tty adapts the kernel's console device to a real terminal.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/moynes-sim/elsos/internal/vm"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ErrNoTTY names the case where standard input is not a terminal. Nothing in this package returns
// it: New handles that case by bridging buffered, non-raw I/O.
var ErrNoTTY error = errors.New("console: not a TTY")

// pollInterval is how often buffered console output is drained to the terminal.
const pollInterval = 20 * time.Millisecond

// Term bridges a [vm.Console] device to real terminal I/O: bytes typed at in are fed to the
// console's input queue; words the console accumulates as output are written to out.
type Term struct {
	console *vm.Console

	fd    int
	isTTY bool
	state *term.State

	cancel context.CancelFunc
}

// New starts bridging console to in/out. If in is a terminal, it is switched to raw mode so
// keystrokes are available immediately rather than line-buffered; Close restores it. If in is not
// a terminal (ErrNoTTY), New still bridges I/O, just without raw-mode key-at-a-time delivery.
func New(console *vm.Console, in io.Reader, out io.Writer) *Term {
	ctx, cancel := context.WithCancel(context.Background())

	t := &Term{console: console, cancel: cancel}

	if f, ok := in.(*os.File); ok {
		fd := int(f.Fd())

		if term.IsTerminal(fd) {
			if saved, err := term.MakeRaw(fd); err == nil {
				t.fd = fd
				t.isTTY = true
				t.state = saved

				_ = setTerminalParams(fd, 1, 0)
			}
		}
	}

	go t.readInput(ctx, in)
	go t.drainOutput(ctx, out)

	return t
}

// Close restores the terminal (if it was put into raw mode) and stops the bridging goroutines.
func (t *Term) Close() {
	t.cancel()

	if t.state != nil {
		_ = term.Restore(t.fd, t.state)
	}
}

func setTerminalParams(fd int, vmin, vtime byte) error {
	termIO, err := unix.IoctlGetTermios(fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	return unix.IoctlSetTermios(fd, setTermiosIoctl, termIO)
}

// readInput copies bytes from in into the console's input queue until ctx is cancelled.
func (t *Term) readInput(ctx context.Context, in io.Reader) {
	if t.isTTY {
		_ = syscall.SetNonblock(t.fd, false)
	}

	r := bufio.NewReader(in)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, err := r.ReadByte()
		if err != nil {
			return
		}

		t.console.Feed(vm.Word(b))
	}
}

// drainOutput polls the console's output buffer and writes whatever has accumulated to out.
func (t *Term) drainOutput(ctx context.Context, out io.Writer) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, w := range t.console.Output() {
				fmt.Fprintf(out, "%c", rune(w))
			}
		}
	}
}
