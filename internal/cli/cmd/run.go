package cmd

// run.go runs the simulated operating system: it builds a CPU, RAM, device set, and program
// catalog from flags, then drives the kernel to completion or to its configured time limit.

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/moynes-sim/elsos/internal/cli"
	"github.com/moynes-sim/elsos/internal/log"
	"github.com/moynes-sim/elsos/internal/sos"
	"github.com/moynes-sim/elsos/internal/tty"
	"github.com/moynes-sim/elsos/internal/vm"
)

// Run is the command that boots the simulation.
func Run() cli.Command {
	return &run{
		ramSize:   sos.DefaultRAMSize,
		clockFreq: sos.DefaultClockFreq,
	}
}

type run struct {
	ramSize     int
	clockFreq   int
	debug       bool
	interactive bool
	timeout     time.Duration
	programs    programList
}

func (run) Description() string {
	return "run the simulated operating system"
}

func (r run) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `run [-ram words] [-clock n] [-debug] [-interactive] [-program name]...

Boot the kernel against a simulated CPU and RAM: one of the registered
programs, chosen at random, is loaded as the first process, and the kernel
runs until no process remains (or until -timeout elapses). With -interactive, the
console device (id 1) is bridged to the real terminal in raw mode instead of
an in-memory byte queue.`)

	return err
}

func (r *run) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.IntVar(&r.ramSize, "ram", sos.DefaultRAMSize, "RAM size in `words`")
	fs.IntVar(&r.clockFreq, "clock", sos.DefaultClockFreq, "ticks between clock interrupts")
	fs.BoolVar(&r.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&r.interactive, "interactive", false, "bridge the console device to the real terminal")
	fs.DurationVar(&r.timeout, "timeout", 10*time.Second, "abort after `duration`")
	fs.Var(&r.programs, "program", "register a built-in `program` (repeatable)")

	return fs
}

// Run constructs the kernel and steps it to completion, printing every OUTPUT word to stdout.
func (r *run) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if r.debug {
		log.LogLevel.Set(log.Debug)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logger.Info("initializing kernel", "ram", r.ramSize, "clock", r.clockFreq)

	machine := sos.New(r.ramSize, r.clockFreq, sos.WithLogger(logger), sos.WithStdout(stdout))

	console := vm.NewConsole(1, machine.CPU.INT)
	machine.Devices.Register(1, console)
	machine.Devices.Register(2, vm.NewTape(2, machine.CPU.INT, []vm.Word{0}))

	// Non-interactive runs leave the console as the in-memory byte queue vm.NewConsole already
	// gives it; -interactive bridges it to the real terminal in raw mode instead.
	if r.interactive {
		term := tty.New(console, os.Stdin, stdout)
		defer term.Close()
	}

	names := r.programs.names
	if len(names) == 0 {
		names = []string{"idle"}
	}

	for _, name := range names {
		prog, ok := builtinPrograms[name]
		if !ok {
			logger.Error("unknown program", "name", name)
			return 1
		}

		machine.Catalog.Register(prog)
	}

	done := make(chan struct{})

	var (
		code sos.ErrorCode
		err  error
	)

	go func() {
		defer close(done)

		code, err = machine.Run()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("run timed out")
		return 2
	}

	if err != nil {
		logger.Error("kernel error", "err", err)
		return 1
	}

	logger.Info("kernel halted", "code", code)

	// A drained process table (ERROR_NO_PROCESSES) is the ordinary way this harness ends: every
	// loaded program ran to completion and nothing remained to schedule. Any other negative code
	// is a genuine fatal condition (e.g. EXEC with no programs registered).
	if code != sos.Success && code != sos.ErrorNoProcesses {
		return int(code)
	}

	return 0
}

// programList implements flag.Value, collecting repeated -program flags.
type programList struct {
	names []string
}

func (p *programList) String() string { return fmt.Sprint(p.names) }

func (p *programList) Set(name string) error {
	p.names = append(p.names, name)
	return nil
}
