package sos

import (
	"testing"

	"github.com/moynes-sim/elsos/internal/vm"
)

// fakeDriver is a minimal vm.Driver for exercising the registry without a real vm.Console/Tape.
type fakeDriver struct {
	name      string
	shareable bool
	readable  bool
	writeable bool
	available bool
}

func (d *fakeDriver) String() string  { return d.name }
func (d *fakeDriver) Shareable() bool { return d.shareable }
func (d *fakeDriver) Readable() bool  { return d.readable }
func (d *fakeDriver) Writeable() bool { return d.writeable }
func (d *fakeDriver) Available() bool { return d.available }

var _ vm.Driver = (*fakeDriver)(nil)

func TestDeviceRegistryOpenUnusedDevice(t *testing.T) {
	dr := NewDeviceRegistry()
	dr.Register(1, &fakeDriver{name: "console", available: true})

	code, blocks := dr.Open(1, 1001)
	if code != Success || blocks {
		t.Fatalf("Open(unused) = %v, %v; want Success, false", code, blocks)
	}

	if !dr.Find(1).Openers[1001] {
		t.Error("opener set should contain pid 1001")
	}
}

func TestDeviceRegistryOpenNonExistent(t *testing.T) {
	dr := NewDeviceRegistry()

	code, blocks := dr.Open(5, 1001)
	if code != ErrorDeviceExistence || blocks {
		t.Fatalf("Open(5) = %v, %v; want ErrorDeviceExistence, false", code, blocks)
	}
}

func TestDeviceRegistryDoubleOpenFails(t *testing.T) {
	dr := NewDeviceRegistry()
	dr.Register(1, &fakeDriver{name: "console", available: true})

	dr.Open(1, 1001)

	code, blocks := dr.Open(1, 1001)
	if code != ErrorDeviceOpen || blocks {
		t.Fatalf("second Open(1) by same pid = %v, %v; want ErrorDeviceOpen, false", code, blocks)
	}
}

func TestDeviceRegistryOpenNonShareableBlocks(t *testing.T) {
	dr := NewDeviceRegistry()
	dr.Register(1, &fakeDriver{name: "console", available: true})

	dr.Open(1, 1001)

	code, blocks := dr.Open(1, 1002)
	if code != Success || !blocks {
		t.Fatalf("Open(1) by second pid = %v, %v; want Success, true (blocking path)", code, blocks)
	}
}

func TestDeviceRegistryOpenShareableNeverBlocks(t *testing.T) {
	dr := NewDeviceRegistry()
	dr.Register(2, &fakeDriver{name: "tape", shareable: true, readable: true, available: true})

	dr.Open(2, 1001)

	code, blocks := dr.Open(2, 1002)
	if code != Success || blocks {
		t.Fatalf("Open(shareable) by second pid = %v, %v; want Success, false", code, blocks)
	}

	if len(dr.Find(2).Openers) != 2 {
		t.Errorf("opener set size = %d, want 2", len(dr.Find(2).Openers))
	}
}

func TestDeviceRegistryCloseWithoutOpenFails(t *testing.T) {
	dr := NewDeviceRegistry()
	dr.Register(1, &fakeDriver{name: "console", available: true})

	code, wake := dr.Close(1, 1001, nil)
	if code != ErrorDeviceNotOpen || wake != 0 {
		t.Fatalf("Close without Open = %v, %v; want ErrorDeviceNotOpen, 0", code, wake)
	}
}

func TestDeviceRegistryCloseWakesFIFOWaiter(t *testing.T) {
	dr := NewDeviceRegistry()
	dr.Register(1, &fakeDriver{name: "console", available: true})

	dr.Open(1, 1001) // holder
	dr.Open(1, 1002) // blocks
	dr.Open(1, 1003) // also blocks

	waiters := []*PCB{
		{PID: 1002, State: Blocked, BlockedFor: &BlockedFor{Device: 1, Op: BlockOpen}},
		{PID: 1003, State: Blocked, BlockedFor: &BlockedFor{Device: 1, Op: BlockOpen}},
	}

	code, wake := dr.Close(1, 1001, waiters)
	if code != Success {
		t.Fatalf("Close(1) by holder = %v, want Success", code)
	}

	if wake != 1002 {
		t.Errorf("Close woke pid %d, want 1002 (first in scan order)", wake)
	}

	if !dr.Find(1).Openers[1002] {
		t.Error("woken pid should now be an opener")
	}

	if dr.Find(1).Openers[1001] {
		t.Error("original holder should no longer be an opener")
	}
}

func TestDeviceRegistryRemovePCBSweepsAllDevices(t *testing.T) {
	dr := NewDeviceRegistry()
	dr.Register(1, &fakeDriver{name: "a", shareable: true, available: true})
	dr.Register(2, &fakeDriver{name: "b", shareable: true, available: true})

	dr.Open(1, 1001)
	dr.Open(2, 1001)

	dr.RemovePCB(1001)

	if dr.Find(1).Openers[1001] || dr.Find(2).Openers[1001] {
		t.Error("RemovePCB should remove pid from every device's opener set")
	}
}
