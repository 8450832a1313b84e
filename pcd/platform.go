package pcd

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pkg"
)

// Permission is the access mode declared by a platform device.
type Permission uint8

// Device permissions.
const (
	PermReadOnly  Permission = 0x01
	PermWriteOnly Permission = 0x10
	PermReadWrite Permission = 0x11
)

// String returns the permission name.
func (p Permission) String() string {
	switch p {
	case PermReadOnly:
		return "RDONLY"
	case PermWriteOnly:
		return "WRONLY"
	case PermReadWrite:
		return "RDWR"
	default:
		return fmt.Sprintf("Permission(%#x)", uint8(p))
	}
}

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	switch p {
	case PermReadOnly, PermWriteOnly, PermReadWrite:
		return true
	}
	return false
}

// Allows reports whether a session opened with flags is within p.
func (p Permission) Allows(flags env.OpenFlags) bool {
	if flags.Readable() && p&PermReadOnly == 0 {
		return false
	}
	if flags.Writable() && p&PermWriteOnly == 0 {
		return false
	}
	return true
}

// ParsePermission parses a permission name. It accepts RDONLY, WRONLY and
// RDWR as well as the short forms ro, wo and rw, case-insensitively.
func ParsePermission(s string) (Permission, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RDONLY", "RO", "READONLY":
		return PermReadOnly, nil
	case "WRONLY", "WO", "WRITEONLY":
		return PermWriteOnly, nil
	case "RDWR", "RW", "READWRITE":
		return PermReadWrite, nil
	}
	return 0, fmt.Errorf("permission %q: %w", s, pkg.ErrInvalidParameter)
}

// MarshalYAML encodes the permission by name.
func (p Permission) MarshalYAML() (any, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("permission %#x: %w", uint8(p), pkg.ErrInvalidParameter)
	}
	return p.String(), nil
}

// UnmarshalYAML decodes a permission name.
func (p *Permission) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParsePermission(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PlatformData is the descriptor a platform device carries for this driver.
type PlatformData struct {
	Size   uint32     `yaml:"size"`
	Perm   Permission `yaml:"perm"`
	Serial string     `yaml:"serial"`
}

// Validate checks the descriptor. Zero-length buffers are not allowed.
func (p *PlatformData) Validate() error {
	if p == nil {
		return fmt.Errorf("no platform data: %w", pkg.ErrInvalidDescriptor)
	}
	if p.Size == 0 {
		return fmt.Errorf("serial %q: zero size: %w", p.Serial, pkg.ErrInvalidDescriptor)
	}
	if !p.Valid() {
		return fmt.Errorf("serial %q: permission %s: %w", p.Serial, p.Perm, pkg.ErrInvalidDescriptor)
	}
	return nil
}

// Valid reports whether the descriptor's permission is known.
func (p *PlatformData) Valid() bool {
	return p.Perm.Valid()
}

// platformData extracts the descriptor from bus platform data.
func platformData(data any) (PlatformData, error) {
	switch pd := data.(type) {
	case *PlatformData:
		if err := pd.Validate(); err != nil {
			return PlatformData{}, err
		}
		return *pd, nil
	case PlatformData:
		if err := pd.Validate(); err != nil {
			return PlatformData{}, err
		}
		return pd, nil
	case nil:
		return PlatformData{}, fmt.Errorf("no platform data: %w", pkg.ErrInvalidDescriptor)
	default:
		return PlatformData{}, fmt.Errorf("platform data of type %T: %w", data, pkg.ErrInvalidDescriptor)
	}
}
