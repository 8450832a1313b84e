package pcd

import (
	"fmt"
	"strings"

	"github.com/ardnew/softpcd/pkg"
	"github.com/ardnew/softpcd/pkg/trace"
)

// Driver defaults.
const (
	DefaultDriverName    = "pseudo-char-device"
	DefaultRegionName    = "pcd_driver"
	DefaultClassName     = "platform_driver"
	DefaultNodePrefix    = "pcd-dev"
	DefaultMaxDevices    = 10
	DefaultMaxBufferSize = 1 << 20
)

// SeekPolicy selects how Session.Seek behaves.
type SeekPolicy uint8

// Seek policies.
const (
	// SeekRewind ignores the requested position and always moves the offset
	// back to 0, returning 0.
	SeekRewind SeekPolicy = iota

	// SeekAbsolute implements io.SeekStart, io.SeekCurrent and io.SeekEnd
	// within [0, capacity].
	SeekAbsolute
)

// String returns the policy name.
func (p SeekPolicy) String() string {
	switch p {
	case SeekRewind:
		return "rewind"
	case SeekAbsolute:
		return "absolute"
	default:
		return "unknown"
	}
}

// ParseSeekPolicy parses "rewind" or "absolute".
func ParseSeekPolicy(s string) (SeekPolicy, error) {
	switch strings.ToLower(s) {
	case "rewind":
		return SeekRewind, nil
	case "absolute":
		return SeekAbsolute, nil
	}
	return 0, fmt.Errorf("seek policy %q: %w", s, pkg.ErrInvalidParameter)
}

// Config configures a Driver.
type Config struct {
	// DriverName is the name matched against platform device names.
	DriverName string

	// RegionName labels the reserved device number range.
	RegionName string

	// ClassName is the namespace class nodes are published under.
	ClassName string

	// NodePrefix prefixes node names: "<NodePrefix>-<index>".
	NodePrefix string

	// MaxDevices is the size of the reserved number range; instance indices
	// must lie in [0, MaxDevices).
	MaxDevices int

	// MaxBufferSize is the largest buffer a probe may allocate.
	MaxBufferSize int

	// EnforcePermissions rejects opens that exceed the device permission.
	EnforcePermissions bool

	// Seek selects the seek behavior.
	Seek SeekPolicy

	// Tracer receives lifecycle and I/O events. Nil disables tracing.
	Tracer trace.Logger
}

// Option modifies a Config.
type Option func(*Config)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DriverName:    DefaultDriverName,
		RegionName:    DefaultRegionName,
		ClassName:     DefaultClassName,
		NodePrefix:    DefaultNodePrefix,
		MaxDevices:    DefaultMaxDevices,
		MaxBufferSize: DefaultMaxBufferSize,
		Seek:          SeekRewind,
	}
}

// NewConfig returns the default configuration with opts applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithDriverName sets the driver name.
func WithDriverName(name string) Option {
	return func(c *Config) { c.DriverName = name }
}

// WithNodePrefix sets the node name prefix.
func WithNodePrefix(prefix string) Option {
	return func(c *Config) { c.NodePrefix = prefix }
}

// WithClassName sets the namespace class name.
func WithClassName(name string) Option {
	return func(c *Config) { c.ClassName = name }
}

// WithMaxDevices sets the size of the reserved number range.
func WithMaxDevices(n int) Option {
	return func(c *Config) { c.MaxDevices = n }
}

// WithMaxBufferSize sets the largest allocatable buffer.
func WithMaxBufferSize(n int) Option {
	return func(c *Config) { c.MaxBufferSize = n }
}

// WithPermissionEnforcement turns permission checks on or off.
func WithPermissionEnforcement(enabled bool) Option {
	return func(c *Config) { c.EnforcePermissions = enabled }
}

// WithSeekPolicy sets the seek policy.
func WithSeekPolicy(p SeekPolicy) Option {
	return func(c *Config) { c.Seek = p }
}

// WithTracer sets the event tracer.
func WithTracer(t trace.Logger) Option {
	return func(c *Config) { c.Tracer = t }
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.DriverName == "":
		return fmt.Errorf("config: empty driver name: %w", pkg.ErrInvalidParameter)
	case c.ClassName == "":
		return fmt.Errorf("config: empty class name: %w", pkg.ErrInvalidParameter)
	case c.NodePrefix == "":
		return fmt.Errorf("config: empty node prefix: %w", pkg.ErrInvalidParameter)
	case c.MaxDevices <= 0:
		return fmt.Errorf("config: max devices %d: %w", c.MaxDevices, pkg.ErrInvalidParameter)
	case c.MaxBufferSize <= 0:
		return fmt.Errorf("config: max buffer size %d: %w", c.MaxBufferSize, pkg.ErrInvalidParameter)
	case c.Seek > SeekAbsolute:
		return fmt.Errorf("config: seek policy %d: %w", c.Seek, pkg.ErrInvalidParameter)
	}
	return nil
}

// NodeName returns the node name for an instance index.
func (c *Config) NodeName(index int) string {
	return fmt.Sprintf("%s-%d", c.NodePrefix, index)
}
