package mem

import (
	"fmt"
	"sort"

	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pkg"
)

// class is a namespace class grouping.
type class struct {
	name  string
	nodes map[env.DevNum]string
	ext   env.Class // publisher handle, nil without a publisher
}

// Name returns the class name.
func (c *class) Name() string {
	return c.name
}

// Node is a published namespace node.
type Node struct {
	Class string
	Name  string
	Num   env.DevNum
}

// CreateClass creates a class grouping.
func (e *Env) CreateClass(name string) (env.Class, error) {
	if name == "" {
		return nil, fmt.Errorf("create class: %w", pkg.ErrInvalidParameter)
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if _, ok := e.classes[name]; ok {
		return nil, fmt.Errorf("create class %q: %w", name, pkg.ErrBusy)
	}

	c := &class{name: name, nodes: make(map[env.DevNum]string)}
	if e.publisher != nil {
		ext, err := e.publisher.CreateClass(name)
		if err != nil {
			return nil, fmt.Errorf("create class %q: %w", name, err)
		}
		c.ext = ext
	}
	e.classes[name] = c
	return c, nil
}

// DestroyClass removes a class. The class must have no nodes.
func (e *Env) DestroyClass(cl env.Class) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	c, err := e.lookupClass(cl)
	if err != nil {
		return err
	}
	if len(c.nodes) > 0 {
		return fmt.Errorf("destroy class %q: %d nodes remain: %w",
			c.name, len(c.nodes), pkg.ErrBusy)
	}
	if c.ext != nil {
		if err := e.publisher.DestroyClass(c.ext); err != nil {
			return fmt.Errorf("destroy class %q: %w", c.name, err)
		}
	}
	delete(e.classes, c.name)
	return nil
}

// CreateNode publishes a node for num under cl.
func (e *Env) CreateNode(cl env.Class, num env.DevNum, name string) error {
	if name == "" {
		return fmt.Errorf("create node %s: %w", num, pkg.ErrInvalidParameter)
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	c, err := e.lookupClass(cl)
	if err != nil {
		return err
	}
	if _, ok := e.findNode(name); ok {
		return fmt.Errorf("create node %q: %w", name, pkg.ErrBusy)
	}
	if _, ok := c.nodes[num]; ok {
		return fmt.Errorf("create node %q: number %s in use: %w", name, num, pkg.ErrBusy)
	}
	if c.ext != nil {
		if err := e.publisher.CreateNode(c.ext, num, name); err != nil {
			return fmt.Errorf("create node %q: %w", name, err)
		}
	}
	c.nodes[num] = name
	pkg.LogDebug(pkg.ComponentEnv, "node created",
		"class", c.name,
		"node", name,
		"device", num.String())
	return nil
}

// DestroyNode removes the node published for num under cl. The node is
// removed from the environment even when the publisher fails; that failure is
// still returned.
func (e *Env) DestroyNode(cl env.Class, num env.DevNum) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	c, err := e.lookupClass(cl)
	if err != nil {
		return err
	}
	name, ok := c.nodes[num]
	if !ok {
		return fmt.Errorf("destroy node %s: %w", num, pkg.ErrNotFound)
	}
	delete(c.nodes, num)
	pkg.LogDebug(pkg.ComponentEnv, "node destroyed",
		"class", c.name,
		"node", name)

	// The node is gone here even if the mirror cannot follow
	if c.ext != nil {
		if err := e.publisher.DestroyNode(c.ext, num); err != nil {
			return fmt.Errorf("destroy node %q: publisher: %w", name, err)
		}
	}
	return nil
}

// Lookup resolves a node name to its device number.
func (e *Env) Lookup(name string) (env.DevNum, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.findNode(name)
}

// Nodes returns all published nodes ordered by device number.
func (e *Env) Nodes() []Node {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	var result []Node
	for _, c := range e.classes {
		for num, name := range c.nodes {
			result = append(result, Node{Class: c.name, Name: name, Num: num})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Num < result[j].Num })
	return result
}

// HasClass reports whether a class named name exists.
func (e *Env) HasClass(name string) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, ok := e.classes[name]
	return ok
}

// lookupClass must be called with e.mutex held.
func (e *Env) lookupClass(cl env.Class) (*class, error) {
	c, ok := cl.(*class)
	if !ok || c == nil || e.classes[c.name] != c {
		return nil, fmt.Errorf("unknown class: %w", pkg.ErrNotFound)
	}
	return c, nil
}

// findNode must be called with e.mutex held.
func (e *Env) findNode(name string) (env.DevNum, bool) {
	for _, c := range e.classes {
		for num, n := range c.nodes {
			if n == name {
				return num, true
			}
		}
	}
	return 0, false
}
