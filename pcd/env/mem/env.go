package mem

import (
	"sync"

	"github.com/ardnew/softpcd/pcd/env"
)

// Env is an in-memory hosting environment. It is safe for concurrent use.
type Env struct {
	mutex sync.RWMutex

	// Region table (one major per region)
	majors  []uint32
	regions map[uint32]region

	// Dispatch table
	bindings map[env.DevNum]env.FileOperations

	// Namespace
	classes   map[string]*class
	publisher env.Namespace

	copier env.Copier
}

// Option configures an Env.
type Option func(*Env)

// WithMajors restricts dynamic allocation to the given majors, tried in order.
func WithMajors(majors ...uint32) Option {
	return func(e *Env) {
		e.majors = append([]uint32(nil), majors...)
	}
}

// WithPublisher mirrors class and node operations to ns.
func WithPublisher(ns env.Namespace) Option {
	return func(e *Env) {
		e.publisher = ns
	}
}

// WithCopier replaces the default copier.
func WithCopier(c env.Copier) Option {
	return func(e *Env) {
		e.copier = c
	}
}

// New creates an empty environment.
func New(opts ...Option) *Env {
	e := &Env{
		majors:   dynamicMajors(),
		regions:  make(map[uint32]region),
		bindings: make(map[env.DevNum]env.FileOperations),
		classes:  make(map[string]*class),
		copier:   env.DirectCopier{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CopyOut delegates to the configured copier.
func (e *Env) CopyOut(dst, src []byte) error {
	return e.copier.CopyOut(dst, src)
}

// CopyIn delegates to the configured copier.
func (e *Env) CopyIn(dst, src []byte) error {
	return e.copier.CopyIn(dst, src)
}

// Compile-time interface satisfaction check.
var _ env.Env = (*Env)(nil)
