package main_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/moynes-sim/elsos/internal/cli/cmd"
	"github.com/moynes-sim/elsos/internal/log"
)

func TestRunCommandHaltsOnIdle(t *testing.T) {
	run := cmd.Run()
	fs := run.FlagSet()

	if err := fs.Parse([]string{"-program", "idle", "-timeout", "2s"}); err != nil {
		t.Fatalf("parse flags: %s", err)
	}

	var out bytes.Buffer

	code := run.Run(context.Background(), fs.Args(), &out, log.DefaultLogger())
	if code != 0 {
		t.Errorf("Run() = %d, want 0; output: %s", code, out.String())
	}
}
