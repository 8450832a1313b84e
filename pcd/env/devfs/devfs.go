package devfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pkg"
)

// Directory and attribute names.
const (
	ClassDir   = "class"
	DevDir     = "dev"
	AttrDev    = "dev"
	AttrUevent = "uevent"
)

// Publisher writes namespace nodes below a root directory.
type Publisher struct {
	root  string
	mutex sync.Mutex
	nodes map[string]map[env.DevNum]string // class -> number -> node
}

// class is the handle returned by CreateClass.
type class struct {
	name string
}

// Name returns the class name.
func (c class) Name() string {
	return c.name
}

// New creates a publisher rooted at root. The directory is created on demand.
func New(root string) *Publisher {
	return &Publisher{
		root:  root,
		nodes: make(map[string]map[env.DevNum]string),
	}
}

// Root returns the root directory.
func (p *Publisher) Root() string {
	return p.root
}

// CreateClass creates <root>/class/<name>.
func (p *Publisher) CreateClass(name string) (env.Class, error) {
	if !validName(name) {
		return nil, fmt.Errorf("devfs class %q: %w", name, pkg.ErrInvalidParameter)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.nodes[name]; ok {
		return nil, fmt.Errorf("devfs class %q: %w", name, pkg.ErrBusy)
	}
	if err := os.MkdirAll(filepath.Join(p.root, ClassDir, name), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(p.root, DevDir), 0o755); err != nil {
		return nil, err
	}
	p.nodes[name] = make(map[env.DevNum]string)
	return class{name: name}, nil
}

// DestroyClass removes <root>/class/<name> and any nodes left in it.
func (p *Publisher) DestroyClass(cl env.Class) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	nodes, ok := p.nodes[cl.Name()]
	if !ok {
		return fmt.Errorf("devfs class %q: %w", cl.Name(), pkg.ErrNotFound)
	}
	for num := range nodes {
		if err := p.removeNode(cl.Name(), num); err != nil {
			return err
		}
	}
	delete(p.nodes, cl.Name())
	return os.RemoveAll(filepath.Join(p.root, ClassDir, cl.Name()))
}

// CreateNode writes the class attributes and the dev entry for name.
func (p *Publisher) CreateNode(cl env.Class, num env.DevNum, name string) error {
	if !validName(name) {
		return fmt.Errorf("devfs node %q: %w", name, pkg.ErrInvalidParameter)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	nodes, ok := p.nodes[cl.Name()]
	if !ok {
		return fmt.Errorf("devfs class %q: %w", cl.Name(), pkg.ErrNotFound)
	}
	if _, ok := nodes[num]; ok {
		return fmt.Errorf("devfs node %s: %w", num, pkg.ErrBusy)
	}

	dir := filepath.Join(p.root, ClassDir, cl.Name(), name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("devfs node %q: %w", name, pkg.ErrBusy)
		}
		return err
	}

	files := []struct {
		path string
		data string
	}{
		{filepath.Join(dir, AttrDev), num.String() + "\n"},
		{filepath.Join(dir, AttrUevent), formatUevent(num, name)},
		{filepath.Join(p.root, DevDir, name), num.String() + "\n"},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, []byte(f.data), 0o644); err != nil {
			_ = os.RemoveAll(dir)
			_ = os.Remove(filepath.Join(p.root, DevDir, name))
			return err
		}
	}

	nodes[num] = name
	return nil
}

// DestroyNode removes the files written by CreateNode.
func (p *Publisher) DestroyNode(cl env.Class, num env.DevNum) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.nodes[cl.Name()]; !ok {
		return fmt.Errorf("devfs class %q: %w", cl.Name(), pkg.ErrNotFound)
	}
	return p.removeNode(cl.Name(), num)
}

// removeNode must be called with p.mutex held.
func (p *Publisher) removeNode(className string, num env.DevNum) error {
	name, ok := p.nodes[className][num]
	if !ok {
		return fmt.Errorf("devfs node %s: %w", num, pkg.ErrNotFound)
	}
	if err := os.RemoveAll(filepath.Join(p.root, ClassDir, className, name)); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(p.root, DevDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	delete(p.nodes[className], num)
	return nil
}

// formatUevent renders the uevent attribute for a node.
func formatUevent(num env.DevNum, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MAJOR=%d\n", num.Major())
	fmt.Fprintf(&b, "MINOR=%d\n", num.Minor())
	fmt.Fprintf(&b, "DEVNAME=%s\n", name)
	return b.String()
}

// validName rejects names that would escape their directory.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`)
}

// =============================================================================
// Discovery
// =============================================================================

// Entry is a node discovered by Scan.
type Entry struct {
	Class string
	Name  string
	Num   env.DevNum
}

// Scan lists the nodes published under root, ordered by device number.
func Scan(root string) ([]Entry, error) {
	classes, err := os.ReadDir(filepath.Join(root, ClassDir))
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, c := range classes {
		if !c.IsDir() {
			continue
		}
		nodes, err := os.ReadDir(filepath.Join(root, ClassDir, c.Name()))
		if err != nil {
			continue
		}
		for _, n := range nodes {
			num, err := ReadDevNum(filepath.Join(root, ClassDir, c.Name(), n.Name(), AttrDev))
			if err != nil {
				continue // Skip entries we can't parse
			}
			entries = append(entries, Entry{Class: c.Name(), Name: n.Name(), Num: num})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Num < entries[j].Num })
	return entries, nil
}

// ReadDevNum parses a "major:minor" attribute file.
func ReadDevNum(path string) (env.DevNum, error) {
	s, err := readAttrString(path)
	if err != nil {
		return 0, err
	}
	return ParseDevNum(s)
}

// ParseDevNum parses "major:minor".
func ParseDevNum(s string) (env.DevNum, error) {
	majStr, minStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("device number %q: %w", s, pkg.ErrInvalidParameter)
	}
	major, err := strconv.ParseUint(majStr, 10, 32)
	if err != nil || major > env.MaxMajor {
		return 0, fmt.Errorf("device number %q: %w", s, pkg.ErrInvalidParameter)
	}
	minor, err := strconv.ParseUint(minStr, 10, 32)
	if err != nil || minor > env.MinorMask {
		return 0, fmt.Errorf("device number %q: %w", s, pkg.ErrInvalidParameter)
	}
	return env.Mkdev(uint32(major), uint32(minor)), nil
}

// readAttrString reads an attribute file and trims surrounding whitespace.
func readAttrString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Compile-time interface satisfaction check.
var _ env.Namespace = (*Publisher)(nil)
