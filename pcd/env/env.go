package env

import "io"

// OpenFlags is the access mode requested when opening a device.
type OpenFlags uint8

// Access modes.
const (
	OpenRead      OpenFlags = 1 << iota // Open for reading
	OpenWrite                           // Open for writing
	OpenReadWrite = OpenRead | OpenWrite
)

// Readable reports whether the flags request read access.
func (f OpenFlags) Readable() bool {
	return f&OpenRead != 0
}

// Writable reports whether the flags request write access.
func (f OpenFlags) Writable() bool {
	return f&OpenWrite != 0
}

// String returns a short mode name: "r", "w", "rw" or "-".
func (f OpenFlags) String() string {
	switch f & OpenReadWrite {
	case OpenRead:
		return "r"
	case OpenWrite:
		return "w"
	case OpenReadWrite:
		return "rw"
	default:
		return "-"
	}
}

// File is an open session on a device.
type File interface {
	io.ReadWriteSeeker
	io.Closer
}

// FileOperations is the binding a driver registers for a device number.
// The environment routes every open of that number through it.
type FileOperations interface {
	Open(flags OpenFlags) (File, error)
}

// Numbers grants and reclaims contiguous device number ranges.
type Numbers interface {
	// ReserveRange reserves count consecutive device numbers under name and
	// returns the first one.
	ReserveRange(count int, name string) (DevNum, error)

	// ReleaseRange returns a range obtained from ReserveRange.
	ReleaseRange(base DevNum, count int)
}

// Dispatch binds device numbers to file operations.
type Dispatch interface {
	// Register binds num to ops. Binding an already bound number fails.
	Register(num DevNum, ops FileOperations) error

	// Unregister removes the binding for num.
	Unregister(num DevNum)
}

// Class is an opaque handle for a namespace class grouping.
type Class interface {
	Name() string
}

// Namespace publishes discoverable device nodes.
type Namespace interface {
	// CreateClass creates the class grouping that nodes are published under.
	CreateClass(name string) (Class, error)

	// DestroyClass removes a class created by CreateClass.
	DestroyClass(class Class) error

	// CreateNode publishes a node for num named name under class.
	CreateNode(class Class, num DevNum, name string) error

	// DestroyNode removes the node published for num under class.
	DestroyNode(class Class, num DevNum) error
}

// Copier moves bytes across the caller boundary.
type Copier interface {
	// CopyOut copies src into the caller's buffer dst.
	CopyOut(dst, src []byte) error

	// CopyIn copies the caller's buffer src into dst.
	CopyIn(dst, src []byte) error
}

// Env is a complete hosting environment.
type Env interface {
	Numbers
	Dispatch
	Namespace
	Copier
}

// DirectCopier copies with the builtin copy and never faults.
type DirectCopier struct{}

// CopyOut copies src into dst.
func (DirectCopier) CopyOut(dst, src []byte) error {
	copy(dst, src)
	return nil
}

// CopyIn copies src into dst.
func (DirectCopier) CopyIn(dst, src []byte) error {
	copy(dst, src)
	return nil
}

// Compile-time interface satisfaction check.
var _ Copier = DirectCopier{}
