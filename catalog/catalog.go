package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/softpcd/bus"
	"github.com/ardnew/softpcd/pcd"
	"github.com/ardnew/softpcd/pkg"
)

// Catalog is a list of platform devices.
type Catalog struct {
	Devices []Entry `yaml:"devices"`
}

// Entry is one platform device.
type Entry struct {
	// Name is matched against driver names.
	Name string `yaml:"name"`

	// ID is the instance index. Nil announces the device with bus.AutoID.
	ID *int `yaml:"id,omitempty"`

	pcd.PlatformData `yaml:",inline"`
}

// LoadError describes a catalog that could not be loaded.
type LoadError struct {
	// File is the catalog path, empty when parsed from memory.
	File string

	// Entry is the index of the offending device entry, or -1.
	Entry int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	if e.Entry >= 0 {
		fmt.Fprintf(&b, "device %d: ", e.Entry)
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns the built-in catalog of two read-write devices.
func Default() *Catalog {
	return &Catalog{
		Devices: []Entry{
			{
				Name: pcd.DefaultDriverName,
				ID:   intPtr(0),
				PlatformData: pcd.PlatformData{
					Size:   512,
					Perm:   pcd.PermReadWrite,
					Serial: "AXZ",
				},
			},
			{
				Name: pcd.DefaultDriverName,
				ID:   intPtr(1),
				PlatformData: pcd.PlatformData{
					Size:   1024,
					Perm:   pcd.PermReadWrite,
					Serial: "CXZ",
				},
			},
		},
	}
}

// Parse parses and validates a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &LoadError{
			Entry:   -1,
			Message: "failed to parse YAML",
			Cause:   err,
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Entry:   -1,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	c, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Entry: -1, Message: err.Error()}
	}

	pkg.LogDebug(pkg.ComponentCatalog, "catalog loaded",
		"file", path,
		"devices", len(c.Devices))
	return c, nil
}

// Validate checks every entry. Two entries may not share a name and id.
func (c *Catalog) Validate() error {
	if len(c.Devices) == 0 {
		return &LoadError{
			Entry:   -1,
			Message: "catalog must list at least one device",
			Cause:   pkg.ErrInvalidParameter,
		}
	}

	seen := make(map[string]int)
	for i := range c.Devices {
		e := &c.Devices[i]
		if e.Name == "" {
			return &LoadError{Entry: i, Message: "name is required", Cause: pkg.ErrInvalidParameter}
		}
		if e.ID != nil {
			if *e.ID < 0 {
				return &LoadError{Entry: i, Message: fmt.Sprintf("negative id %d", *e.ID), Cause: pkg.ErrInvalidParameter}
			}
			key := fmt.Sprintf("%s.%d", e.Name, *e.ID)
			if prev, dup := seen[key]; dup {
				return &LoadError{Entry: i, Message: fmt.Sprintf("duplicate of device %d (%s)", prev, key), Cause: pkg.ErrBusy}
			}
			seen[key] = i
		}
		if err := e.PlatformData.Validate(); err != nil {
			return &LoadError{Entry: i, Message: "invalid platform data", Cause: err}
		}
	}
	return nil
}

// BusDevices returns one bus announcement per entry, in catalog order.
// Each device carries a copy of its entry's platform data.
func (c *Catalog) BusDevices() []*bus.Device {
	devs := make([]*bus.Device, 0, len(c.Devices))
	for _, e := range c.Devices {
		id := bus.AutoID
		if e.ID != nil {
			id = *e.ID
		}
		data := e.PlatformData
		devs = append(devs, &bus.Device{
			Name: e.Name,
			ID:   id,
			Data: &data,
		})
	}
	return devs
}

// Encode writes the catalog as YAML.
func (c *Catalog) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

func intPtr(v int) *int {
	return &v
}
