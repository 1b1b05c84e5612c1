package sos

// errors.go defines the syscall result codes and the sentinel errors for system-fatal conditions.

import "errors"

// ErrorCode is a syscall result word: zero for success, negative for a specific failure. These are
// pushed onto the user's stack as plain data, per spec §4.3 — they are never wrapped as Go errors.
type ErrorCode int32

// Syscall result codes.
const (
	Success                    ErrorCode = 0
	ErrorDeviceExistence       ErrorCode = -2
	ErrorDeviceNotUsable       ErrorCode = -3
	ErrorDeviceOpen            ErrorCode = -4
	ErrorDeviceNotOpen         ErrorCode = -5
	ErrorDeviceNotReadable     ErrorCode = -6
	ErrorDeviceNotWriteable    ErrorCode = -7
	ErrorNoProcesses           ErrorCode = -8
	ErrorNeedMoreSpace         ErrorCode = -9
)

// System-fatal conditions terminate the simulation rather than returning a result to user code.
var (
	// ErrNoProcesses is returned by the scheduler when the process table is empty.
	ErrNoProcesses = errors.New("sos: no processes left to schedule")

	// ErrNoPrograms is returned by EXEC when the program catalog has nothing registered.
	ErrNoPrograms = errors.New("sos: no programs registered")
)
