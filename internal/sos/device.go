package sos

// device.go maps device ids to drivers and tracks which processes have each one open.

import (
	"github.com/moynes-sim/elsos/internal/log"
	"github.com/moynes-sim/elsos/internal/vm"
)

// DeviceInfo pairs a driver with the set of processes currently holding it open.
type DeviceInfo struct {
	ID      int
	Driver  vm.Driver
	Openers map[int]bool // pid -> open
}

func (d *DeviceInfo) LogValue() log.Value {
	return log.GroupValue(
		log.Any("id", d.ID),
		log.String("driver", d.Driver.String()),
		log.Any("openers", len(d.Openers)),
	)
}

// DeviceRegistry owns every registered device.
type DeviceRegistry struct {
	devices map[int]*DeviceInfo

	log *log.Logger
}

// NewDeviceRegistry creates an empty registry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		devices: make(map[int]*DeviceInfo),
		log:     log.DefaultLogger(),
	}
}

// Register adds driver under id. id must not already be registered.
func (dr *DeviceRegistry) Register(id int, driver vm.Driver) {
	dr.devices[id] = &DeviceInfo{ID: id, Driver: driver, Openers: make(map[int]bool)}
}

// Find returns the DeviceInfo for id, or nil if none is registered.
func (dr *DeviceRegistry) Find(id int) *DeviceInfo { return dr.devices[id] }

func (dr *DeviceRegistry) isShareable(id int) bool {
	d := dr.Find(id)
	return d != nil && d.Driver.Shareable()
}

func (dr *DeviceRegistry) isReadable(id int) bool {
	d := dr.Find(id)
	return d != nil && d.Driver.Readable()
}

func (dr *DeviceRegistry) isWriteable(id int) bool {
	d := dr.Find(id)
	return d != nil && d.Driver.Writeable()
}

func (dr *DeviceRegistry) isAvailable(id int) bool {
	d := dr.Find(id)
	return d != nil && d.Driver.Available()
}

// Open applies the OPEN policy for device id and the calling PCB, returning the result code and
// whether the caller must block. On the blocking path the returned code is Success: the dispatcher
// pushes it onto the caller's stack at block time, and the caller reads it once a matching CLOSE
// has made it an opener and unblocked it.
func (dr *DeviceRegistry) Open(id int, pid int) (code ErrorCode, blocks bool) {
	d := dr.Find(id)
	if d == nil {
		return ErrorDeviceExistence, false
	}

	if d.Openers[pid] {
		return ErrorDeviceOpen, false
	}

	if len(d.Openers) == 0 || d.Driver.Shareable() {
		d.Openers[pid] = true
		return Success, false
	}

	return Success, true
}

// Close applies the CLOSE policy for device id and the calling PCB. On success it returns the pid
// of exactly one process to unblock (the first, in table-scan order, blocked on (id, OPEN, *)), or
// 0 if none is waiting.
func (dr *DeviceRegistry) Close(id int, pid int, blockedOpeners []*PCB) (code ErrorCode, wake int) {
	d := dr.Find(id)
	if d == nil || !d.Openers[pid] {
		return ErrorDeviceNotOpen, 0
	}

	delete(d.Openers, pid)

	for _, p := range blockedOpeners {
		if p.BlockedFor != nil && p.BlockedFor.Device == id && p.BlockedFor.Op == BlockOpen {
			d.Openers[p.PID] = true
			return Success, p.PID
		}
	}

	return Success, 0
}

// RemovePCB drops pid from every device's opener set, per the invariant that an opener set never
// contains a non-existent PCB.
func (dr *DeviceRegistry) RemovePCB(pid int) {
	for _, d := range dr.devices {
		delete(d.Openers, pid)
	}
}
