package pkg

import "errors"

// Driver lifecycle errors.
var (
	// ErrResourceExhausted indicates a device number range could not be granted
	// or an instance index falls outside the reserved range.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrOutOfMemory indicates a device buffer could not be allocated.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrInvalidDescriptor indicates absent or malformed platform data.
	ErrInvalidDescriptor = errors.New("invalid device descriptor")

	// ErrRegistration indicates the dispatch binding or namespace node could
	// not be registered with the hosting environment.
	ErrRegistration = errors.New("registration failed")

	// ErrAlreadyRemoved indicates a device instance was already removed.
	ErrAlreadyRemoved = errors.New("device already removed")

	// ErrNotLoaded indicates the driver is not loaded.
	ErrNotLoaded = errors.New("driver not loaded")
)

// Device I/O errors.
var (
	// ErrFault indicates the caller-side buffer could not accept or supply
	// the transferred bytes.
	ErrFault = errors.New("bad address")

	// ErrNoSpace indicates the device buffer is exhausted at the current offset.
	ErrNoSpace = errors.New("no space left on device")

	// ErrOutOfBounds indicates an offset beyond the device capacity.
	ErrOutOfBounds = errors.New("offset out of bounds")

	// ErrPermission indicates an access mode the device does not permit.
	ErrPermission = errors.New("permission denied")

	// ErrNoDevice indicates the device is not present.
	ErrNoDevice = errors.New("device not present")

	// ErrClosed indicates an operation on a closed session.
	ErrClosed = errors.New("session closed")
)

// General errors.
var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrBusy indicates the resource is busy.
	ErrBusy = errors.New("resource busy")

	// ErrNotFound indicates a named resource does not exist.
	ErrNotFound = errors.New("not found")
)
