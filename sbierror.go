package hartboot

import (
	"errors"
	"fmt"
)

// SBI v2.0 return codes, as placed in a0 by the firmware.
const (
	SBI_SUCCESS               int64 = 0
	SBI_ERR_FAILED            int64 = -1
	SBI_ERR_NOT_SUPPORTED     int64 = -2
	SBI_ERR_INVALID_PARAM     int64 = -3
	SBI_ERR_DENIED            int64 = -4
	SBI_ERR_INVALID_ADDRESS   int64 = -5
	SBI_ERR_ALREADY_AVAILABLE int64 = -6
	SBI_ERR_ALREADY_STARTED   int64 = -7
	SBI_ERR_ALREADY_STOPPED   int64 = -8
	SBI_ERR_NO_SHMEM          int64 = -9
)

// SBIError wraps a non-zero SBI return code.
type SBIError struct {
	Code    int64
	message string // Optional custom message for specific errors
}

func (e SBIError) Error() string {
	if e.message != "" {
		return e.message
	}

	switch e.Code {
	case SBI_SUCCESS:
		return "sbi: success"
	case SBI_ERR_FAILED:
		return "sbi: failed (SBI_ERR_FAILED)"
	case SBI_ERR_NOT_SUPPORTED:
		return "sbi: not supported (SBI_ERR_NOT_SUPPORTED) - extension or function missing from firmware"
	case SBI_ERR_INVALID_PARAM:
		return "sbi: invalid parameter (SBI_ERR_INVALID_PARAM) - check hart id and arguments"
	case SBI_ERR_DENIED:
		return "sbi: denied (SBI_ERR_DENIED)"
	case SBI_ERR_INVALID_ADDRESS:
		return "sbi: invalid address (SBI_ERR_INVALID_ADDRESS) - address not accessible to the supervisor"
	case SBI_ERR_ALREADY_AVAILABLE:
		return "sbi: already available (SBI_ERR_ALREADY_AVAILABLE) - hart is already started"
	case SBI_ERR_ALREADY_STARTED:
		return "sbi: already started (SBI_ERR_ALREADY_STARTED)"
	case SBI_ERR_ALREADY_STOPPED:
		return "sbi: already stopped (SBI_ERR_ALREADY_STOPPED)"
	case SBI_ERR_NO_SHMEM:
		return "sbi: no shared memory (SBI_ERR_NO_SHMEM)"
	default:
		return fmt.Sprintf("sbi: unknown error code %d", e.Code)
	}
}

// Is reports whether target is an SBIError carrying the same code.
func (e SBIError) Is(target error) bool {
	switch t := target.(type) {
	case SBIError:
		return t.Code == e.Code
	case *SBIError:
		return t != nil && t.Code == e.Code
	}
	return false
}

func sbiErr(code int64) error {
	if code == SBI_SUCCESS {
		return nil
	}
	return SBIError{Code: code}
}

// Common specific errors for API consumers
var (
	ErrNotSupported       = &SBIError{Code: SBI_ERR_NOT_SUPPORTED, message: "sbi: not supported on this platform"}
	ErrInvalidParam       = &SBIError{Code: SBI_ERR_INVALID_PARAM, message: "sbi: invalid hart id"}
	ErrHartAlreadyStarted = &SBIError{Code: SBI_ERR_ALREADY_AVAILABLE, message: "sbi: hart already started"}
)

// Boot path errors. All of them are fatal to the hart that hits them.
var (
	ErrDescriptorParse = errors.New("hartboot: unable to parse device tree")
	ErrNoMemory        = errors.New("hartboot: unable to locate DRAM start")
	ErrNoHarts         = errors.New("hartboot: device tree lists no cpus")
	ErrHartOutOfRange  = fmt.Errorf("hartboot: hart id exceeds stack pool (max %d harts)", MaxHarts)
	ErrMisalignedPool  = fmt.Errorf("hartboot: stack pool base not %d-byte aligned", StackAlign)
)
