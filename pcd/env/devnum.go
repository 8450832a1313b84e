package env

import "fmt"

// MinorBits is the number of low bits of a DevNum holding the minor number.
const MinorBits = 20

// MinorMask selects the minor number from a DevNum.
const MinorMask = 1<<MinorBits - 1

// MaxMajor is the largest representable major number.
const MaxMajor = 1<<(32-MinorBits) - 1

// DevNum is a device number with the major in the high 12 bits and the minor
// in the low 20 bits.
type DevNum uint32

// Mkdev builds a device number from its major and minor parts.
func Mkdev(major, minor uint32) DevNum {
	return DevNum(major<<MinorBits | minor&MinorMask)
}

// Major returns the major number.
func (d DevNum) Major() uint32 {
	return uint32(d) >> MinorBits
}

// Minor returns the minor number.
func (d DevNum) Minor() uint32 {
	return uint32(d) & MinorMask
}

// String returns "major:minor".
func (d DevNum) String() string {
	return fmt.Sprintf("%d:%d", d.Major(), d.Minor())
}
