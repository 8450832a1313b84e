package pcd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pcd/env/mem"
)

var errBadPointer = errors.New("bad user pointer")

// faultCopier fails the selected copy direction.
type faultCopier struct {
	failOut bool
	failIn  bool
}

func (c *faultCopier) CopyOut(dst, src []byte) error {
	if c.failOut {
		return errBadPointer
	}
	copy(dst, src)
	return nil
}

func (c *faultCopier) CopyIn(dst, src []byte) error {
	if c.failIn {
		return errBadPointer
	}
	copy(dst, src)
	return nil
}

// newTestDriver loads a driver into a fresh in-memory environment and unloads
// it when the test ends.
func newTestDriver(t *testing.T, envOpts []mem.Option, opts ...Option) (*Driver, *mem.Env) {
	t.Helper()

	e := mem.New(envOpts...)
	drv, err := Load(e, NewConfig(opts...))
	require.NoError(t, err)

	t.Cleanup(func() {
		if drv.Loaded() {
			_ = drv.Unload()
		}
	})
	return drv, e
}

func probeDevice(t *testing.T, drv *Driver, index int, size uint32, perm Permission, serial string) *Instance {
	t.Helper()

	inst, err := drv.Probe(&PlatformData{Size: size, Perm: perm, Serial: serial}, index)
	require.NoError(t, err)
	return inst
}

func openSession(t *testing.T, inst *Instance, flags env.OpenFlags) *Session {
	t.Helper()

	s, err := inst.OpenSession(flags)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testClass is a namespace class handle.
type testClass string

func (c testClass) Name() string { return string(c) }

// mockEnv is a scripted hosting environment.
type mockEnv struct {
	mock.Mock
	env.DirectCopier
}

func (m *mockEnv) ReserveRange(count int, name string) (env.DevNum, error) {
	args := m.Called(count, name)
	return args.Get(0).(env.DevNum), args.Error(1)
}

func (m *mockEnv) ReleaseRange(base env.DevNum, count int) {
	m.Called(base, count)
}

func (m *mockEnv) Register(num env.DevNum, ops env.FileOperations) error {
	return m.Called(num, ops).Error(0)
}

func (m *mockEnv) Unregister(num env.DevNum) {
	m.Called(num)
}

func (m *mockEnv) CreateClass(name string) (env.Class, error) {
	args := m.Called(name)
	cl, _ := args.Get(0).(env.Class)
	return cl, args.Error(1)
}

func (m *mockEnv) DestroyClass(cl env.Class) error {
	return m.Called(cl).Error(0)
}

func (m *mockEnv) CreateNode(cl env.Class, num env.DevNum, name string) error {
	return m.Called(cl, num, name).Error(0)
}

func (m *mockEnv) DestroyNode(cl env.Class, num env.DevNum) error {
	return m.Called(cl, num).Error(0)
}

var _ env.Env = (*mockEnv)(nil)
