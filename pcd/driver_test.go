package pcd

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softpcd/bus"
	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pcd/env/mem"
	"github.com/ardnew/softpcd/pkg"
	"github.com/ardnew/softpcd/pkg/trace"
)

func TestLoad(t *testing.T) {
	drv, e := newTestDriver(t, nil)

	assert.True(t, drv.Loaded())
	assert.Equal(t, uint32(0), drv.Base().Minor())
	assert.True(t, e.HasClass(DefaultClassName))
	assert.Equal(t, []mem.Region{
		{Name: DefaultRegionName, Base: drv.Base(), Count: DefaultMaxDevices},
	}, e.Regions())
	assert.Zero(t, drv.ActiveCount())
}

func TestLoadInvalidConfig(t *testing.T) {
	_, err := Load(mem.New(), NewConfig(WithMaxDevices(0)))
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)

	_, err = Load(nil, DefaultConfig())
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestLoadNoNumbers(t *testing.T) {
	e := mem.New(mem.WithMajors())

	_, err := Load(e, DefaultConfig())
	assert.ErrorIs(t, err, pkg.ErrResourceExhausted)
	assert.False(t, e.HasClass(DefaultClassName))
}

func TestLoadReleasesRangeOnClassFailure(t *testing.T) {
	base := env.Mkdev(254, 0)
	errClass := errors.New("class exists")

	m := &mockEnv{}
	m.On("ReserveRange", DefaultMaxDevices, DefaultRegionName).Return(base, nil)
	m.On("CreateClass", DefaultClassName).Return(nil, errClass)
	m.On("ReleaseRange", base, DefaultMaxDevices).Return()

	_, err := Load(m, DefaultConfig())
	assert.ErrorIs(t, err, pkg.ErrResourceExhausted)
	assert.ErrorIs(t, err, errClass)
	m.AssertExpectations(t)
}

func TestProbeScenario(t *testing.T) {
	drv, e := newTestDriver(t, nil)

	inst := probeDevice(t, drv, 0, 512, PermReadWrite, "AXZ")

	assert.Equal(t, "pcd-dev-0", inst.Node())
	assert.Equal(t, drv.Base(), inst.Num())
	assert.Equal(t, StateActive, inst.State())
	assert.Equal(t, 512, inst.Capacity())
	assert.Equal(t, 1, drv.ActiveCount())
	assert.Same(t, inst, drv.Instance(0))

	num, ok := e.Lookup("pcd-dev-0")
	require.True(t, ok)
	assert.Equal(t, inst.Num(), num)
	assert.True(t, e.Bound(num))

	f, err := e.OpenNode("pcd-dev-0", env.OpenReadWrite)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), f.(*Session).Offset())

	pos, err := f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Zero(t, pos)

	// No written-length concept: the rest of the window is zeroed storage
	p := make([]byte, 10)
	n, err = f.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, append([]byte("hello"), 0, 0, 0, 0, 0), p)
}

func TestProbeDescriptorErrors(t *testing.T) {
	drv, e := newTestDriver(t, nil, WithMaxBufferSize(1024))

	tests := []struct {
		name    string
		desc    any
		index   int
		wantErr error
	}{
		{"nil", nil, 0, pkg.ErrInvalidDescriptor},
		{"nil pointer", (*PlatformData)(nil), 0, pkg.ErrInvalidDescriptor},
		{"wrong type", "AXZ", 0, pkg.ErrInvalidDescriptor},
		{"zero capacity", PlatformData{Size: 0, Perm: PermReadWrite}, 0, pkg.ErrInvalidDescriptor},
		{"bad permission", PlatformData{Size: 16, Perm: 0x22}, 0, pkg.ErrInvalidDescriptor},
		{"too large", PlatformData{Size: 2048, Perm: PermReadWrite}, 0, pkg.ErrOutOfMemory},
		{"negative index", PlatformData{Size: 16, Perm: PermReadWrite}, -1, pkg.ErrResourceExhausted},
		{"index past range", PlatformData{Size: 16, Perm: PermReadWrite}, DefaultMaxDevices, pkg.ErrResourceExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := drv.Probe(tt.desc, tt.index)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, inst)
			assert.Zero(t, drv.ActiveCount())
			assert.Empty(t, e.Nodes())
		})
	}
}

func TestProbeDuplicateIndex(t *testing.T) {
	drv, e := newTestDriver(t, nil)

	first := probeDevice(t, drv, 3, 64, PermReadWrite, "AXZ")
	_, err := drv.Probe(&PlatformData{Size: 64, Perm: PermReadWrite, Serial: "CXZ"}, 3)
	assert.ErrorIs(t, err, pkg.ErrRegistration)

	assert.Equal(t, 1, drv.ActiveCount())
	assert.Same(t, first, drv.Instance(3))
	assert.True(t, e.Bound(first.Num()))
}

func TestProbeUnwindsOnRegisterFailure(t *testing.T) {
	base := env.Mkdev(254, 0)
	class := testClass(DefaultClassName)

	m := &mockEnv{}
	m.On("ReserveRange", DefaultMaxDevices, DefaultRegionName).Return(base, nil)
	m.On("CreateClass", DefaultClassName).Return(class, nil)
	m.On("Register", base, mock.Anything).Return(pkg.ErrBusy)

	drv, err := Load(m, DefaultConfig())
	require.NoError(t, err)

	_, err = drv.Probe(&PlatformData{Size: 512, Perm: PermReadWrite}, 0)
	assert.ErrorIs(t, err, pkg.ErrRegistration)
	assert.ErrorIs(t, err, pkg.ErrBusy)
	assert.Zero(t, drv.ActiveCount())
	assert.Nil(t, drv.Instance(0))

	m.AssertNotCalled(t, "CreateNode", mock.Anything, mock.Anything, mock.Anything)
	m.AssertExpectations(t)
}

func TestProbeUnwindsOnNodeFailure(t *testing.T) {
	base := env.Mkdev(254, 0)
	num := DeviceNumber(base, 2)
	class := testClass(DefaultClassName)
	errNode := errors.New("node exists")

	m := &mockEnv{}
	m.On("ReserveRange", DefaultMaxDevices, DefaultRegionName).Return(base, nil)
	m.On("CreateClass", DefaultClassName).Return(class, nil)
	m.On("Register", num, mock.Anything).Return(nil)
	m.On("CreateNode", class, num, "pcd-dev-2").Return(errNode)
	m.On("Unregister", num).Return()

	drv, err := Load(m, DefaultConfig())
	require.NoError(t, err)

	_, err = drv.Probe(&PlatformData{Size: 512, Perm: PermReadWrite}, 2)
	assert.ErrorIs(t, err, pkg.ErrRegistration)
	assert.ErrorIs(t, err, errNode)
	assert.Zero(t, drv.ActiveCount())
	assert.Nil(t, drv.Instance(2))
	m.AssertExpectations(t)
}

func TestRemove(t *testing.T) {
	drv, e := newTestDriver(t, nil)

	inst := probeDevice(t, drv, 0, 512, PermReadWrite, "AXZ")
	s := openSession(t, inst, env.OpenReadWrite)

	require.NoError(t, drv.Remove(inst))
	assert.Equal(t, StateRemoved, inst.State())
	assert.Zero(t, drv.ActiveCount())
	assert.Nil(t, drv.Instance(0))
	assert.False(t, e.Bound(inst.Num()))
	_, ok := e.Lookup("pcd-dev-0")
	assert.False(t, ok)

	// Open sessions outlive the device but cannot use it
	_, err := s.Write([]byte("x"))
	assert.ErrorIs(t, err, pkg.ErrNoDevice)
	_, err = s.Read(make([]byte, 1))
	assert.ErrorIs(t, err, pkg.ErrNoDevice)
	_, err = inst.OpenSession(env.OpenRead)
	assert.ErrorIs(t, err, pkg.ErrNoDevice)
	_, err = e.Open(inst.Num(), env.OpenRead)
	assert.ErrorIs(t, err, pkg.ErrNoDevice)
}

func TestRemoveTwice(t *testing.T) {
	drv, _ := newTestDriver(t, nil)

	a := probeDevice(t, drv, 0, 512, PermReadWrite, "AXZ")
	probeDevice(t, drv, 1, 1024, PermReadWrite, "CXZ")

	require.NoError(t, drv.Remove(a))
	err := drv.Remove(a)
	assert.ErrorIs(t, err, pkg.ErrAlreadyRemoved)
	assert.Equal(t, 1, drv.ActiveCount())

	assert.ErrorIs(t, drv.Remove(nil), pkg.ErrInvalidParameter)
}

func TestRemoveThenProbeAgain(t *testing.T) {
	drv, e := newTestDriver(t, nil)

	desc := &PlatformData{Size: 512, Perm: PermReadWrite, Serial: "AXZ"}
	first, err := drv.Probe(desc, 0)
	require.NoError(t, err)

	s := openSession(t, first, env.OpenWrite)
	_, err = s.Write([]byte("stale"))
	require.NoError(t, err)

	require.NoError(t, drv.Remove(first))

	second, err := drv.Probe(desc, 0)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Num(), second.Num())
	assert.Equal(t, first.Node(), second.Node())
	assert.Equal(t, first.PlatformData(), second.PlatformData())
	assert.True(t, e.Bound(second.Num()))

	// Fresh buffer
	r := openSession(t, second, env.OpenRead)
	p := make([]byte, 5)
	_, err = r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 5), p)
}

func TestPlatformDataCopied(t *testing.T) {
	drv, _ := newTestDriver(t, nil)

	desc := &PlatformData{Size: 64, Perm: PermReadOnly, Serial: "AXZ"}
	inst, err := drv.Probe(desc, 0)
	require.NoError(t, err)

	desc.Size = 1
	desc.Serial = "changed"
	assert.Equal(t, 64, inst.Capacity())
	assert.Equal(t, "AXZ", inst.PlatformData().Serial)
}

func TestInstances(t *testing.T) {
	drv, _ := newTestDriver(t, nil)

	probeDevice(t, drv, 4, 16, PermReadWrite, "D")
	probeDevice(t, drv, 1, 16, PermReadWrite, "B")
	probeDevice(t, drv, 2, 16, PermReadWrite, "C")

	var nodes []string
	for _, inst := range drv.Instances() {
		nodes = append(nodes, inst.Node())
	}
	assert.Equal(t, []string{"pcd-dev-1", "pcd-dev-2", "pcd-dev-4"}, nodes)
}

func TestUnload(t *testing.T) {
	drv, e := newTestDriver(t, nil)

	probeDevice(t, drv, 0, 512, PermReadWrite, "AXZ")
	probeDevice(t, drv, 1, 1024, PermReadWrite, "CXZ")

	require.NoError(t, drv.Unload())
	assert.False(t, drv.Loaded())
	assert.Zero(t, drv.ActiveCount())
	assert.Empty(t, e.Nodes())
	assert.Empty(t, e.Regions())
	assert.False(t, e.HasClass(DefaultClassName))

	assert.ErrorIs(t, drv.Unload(), pkg.ErrNotLoaded)

	_, err := drv.Probe(&PlatformData{Size: 16, Perm: PermReadWrite}, 0)
	assert.ErrorIs(t, err, pkg.ErrNotLoaded)
}

func TestBusBinding(t *testing.T) {
	drv, e := newTestDriver(t, nil)
	b := bus.New()

	axz := &bus.Device{Name: DefaultDriverName, ID: bus.AutoID, Data: &PlatformData{Size: 512, Perm: PermReadWrite, Serial: "AXZ"}}
	cxz := &bus.Device{Name: DefaultDriverName, ID: bus.AutoID, Data: &PlatformData{Size: 1024, Perm: PermReadWrite, Serial: "CXZ"}}
	other := &bus.Device{Name: "other-driver", ID: 0}

	// Devices announced before the driver attaches are probed on attach
	require.NoError(t, b.AddDevices(axz, cxz, other))
	require.NoError(t, drv.Attach(b))
	assert.ErrorIs(t, drv.Attach(b), pkg.ErrBusy)

	require.Equal(t, 2, drv.ActiveCount())
	a, c := drv.Instance(0), drv.Instance(1)
	require.NotNil(t, a)
	require.NotNil(t, c)
	assert.NotEqual(t, a.Num(), c.Num())
	assert.NotEqual(t, a.Node(), c.Node())
	assert.Equal(t, "AXZ", a.PlatformData().Serial)
	assert.Equal(t, "CXZ", c.PlatformData().Serial)

	data, ok := b.DriverData(axz)
	require.True(t, ok)
	assert.Same(t, a, data)

	// Withdrawal removes the instance
	require.NoError(t, b.RemoveDevice(axz))
	assert.Equal(t, StateRemoved, a.State())
	assert.Equal(t, 1, drv.ActiveCount())

	// Unload detaches from the bus
	require.NoError(t, drv.Unload())
	assert.False(t, b.HasDriver(DefaultDriverName))
	assert.Equal(t, StateRemoved, c.State())
	assert.Empty(t, e.Nodes())
}

func TestBusProbeFailureLeavesDeviceUnbound(t *testing.T) {
	drv, _ := newTestDriver(t, nil)
	b := bus.New()
	require.NoError(t, drv.Attach(b))

	good := &bus.Device{Name: DefaultDriverName, ID: 0, Data: PlatformData{Size: 8, Perm: PermReadWrite}}
	bad := &bus.Device{Name: DefaultDriverName, ID: 1, Data: PlatformData{Size: 0, Perm: PermReadWrite}}

	err := b.AddDevices(good, bad)
	assert.ErrorIs(t, err, pkg.ErrInvalidDescriptor)
	assert.Equal(t, 1, drv.ActiveCount())

	_, ok := b.DriverData(bad)
	assert.False(t, ok)
}

func TestRemoveWithdrawsBusDevice(t *testing.T) {
	drv, e := newTestDriver(t, nil)
	b := bus.New()
	require.NoError(t, drv.Attach(b))

	axz := &bus.Device{Name: DefaultDriverName, ID: 0, Data: &PlatformData{Size: 512, Perm: PermReadWrite, Serial: "AXZ"}}
	cxz := &bus.Device{Name: DefaultDriverName, ID: 1, Data: &PlatformData{Size: 1024, Perm: PermReadWrite, Serial: "CXZ"}}
	require.NoError(t, b.AddDevices(axz, cxz))
	a := drv.Instance(0)
	require.NotNil(t, a)

	require.NoError(t, drv.Remove(a))
	assert.Equal(t, StateRemoved, a.State())
	assert.Equal(t, 1, drv.ActiveCount())
	assert.Nil(t, b.Lookup(DefaultDriverName, 0))
	_, ok := b.DriverData(axz)
	assert.False(t, ok)
	_, ok = e.Lookup("pcd-dev-0")
	assert.False(t, ok)

	assert.ErrorIs(t, drv.Remove(a), pkg.ErrAlreadyRemoved)

	// The slot can be announced again
	again := &bus.Device{Name: DefaultDriverName, ID: 0, Data: &PlatformData{Size: 64, Perm: PermReadWrite, Serial: "AXZ2"}}
	require.NoError(t, b.AddDevices(again))
	require.NotNil(t, drv.Instance(0))
	assert.Equal(t, "AXZ2", drv.Instance(0).PlatformData().Serial)

	// Unload finds no stale binding to trip over
	require.NoError(t, drv.Unload())
	for _, info := range b.Devices() {
		assert.False(t, info.Bound(), "%s.%d", info.Name, info.ID)
	}
	assert.Empty(t, e.Nodes())
}

func TestTraceEvents(t *testing.T) {
	rec := &trace.Recorder{}
	drv, _ := newTestDriver(t, nil, WithTracer(rec))

	inst := probeDevice(t, drv, 0, 8, PermReadWrite, "AXZ")
	s, err := inst.OpenSession(env.OpenReadWrite)
	require.NoError(t, err)

	_, err = s.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = s.Read(make([]byte, 4))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, drv.Remove(inst))
	require.NoError(t, drv.Unload())

	assert.Equal(t, []trace.Op{
		trace.OpLoad,
		trace.OpProbe,
		trace.OpOpen,
		trace.OpWrite,
		trace.OpSeek,
		trace.OpRead,
		trace.OpClose,
		trace.OpRemove,
		trace.OpUnload,
	}, rec.Ops())

	events := rec.Events()
	write := events[3]
	assert.Equal(t, DefaultDriverName, write.Driver)
	assert.Equal(t, "pcd-dev-0", write.Node)
	assert.Equal(t, s.ID(), write.SessionID)
	assert.Equal(t, 10, write.Requested)
	assert.Equal(t, 8, write.Transferred)
	assert.True(t, write.Truncated)
	assert.Equal(t, int64(8), write.Offset)
	assert.False(t, write.Timestamp.IsZero())

	read := events[5]
	assert.Equal(t, 4, read.Transferred)
	assert.False(t, read.Truncated)
	assert.Equal(t, int64(4), read.Offset)
}
