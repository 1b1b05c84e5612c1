package tty_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/moynes-sim/elsos/internal/tty"
	"github.com/moynes-sim/elsos/internal/vm"
)

func TestTerm(t *testing.T) {
	ic := vm.NewInterruptController()
	console := vm.NewConsole(1, ic)

	in := strings.NewReader("hi")
	out := &bytes.Buffer{}

	term := tty.New(console, in, out)
	defer term.Close()

	// The reader goroutine only feeds the console's input queue, so the console's output is still
	// empty here; this loop stops as soon as it sees that.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if len(console.Output()) == 0 {
			break
		}
	}

	console.StartWrite(0, 'O')
	console.StartWrite(0, 'K')

	deadline = time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if out.Len() >= 2 {
			break
		}

		time.Sleep(5 * time.Millisecond)
	}

	if got := out.String(); got != "OK" {
		t.Errorf("terminal output = %q, want %q", got, "OK")
	}
}
