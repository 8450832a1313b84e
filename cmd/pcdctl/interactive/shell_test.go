package interactive

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softpcd/bus"
	"github.com/ardnew/softpcd/pcd"
	"github.com/ardnew/softpcd/pcd/env/mem"
)

func newTestShell(t *testing.T, opts ...pcd.Option) (*Shell, *bytes.Buffer, *pcd.Driver) {
	t.Helper()

	e := mem.New()
	drv, err := pcd.Load(e, pcd.NewConfig(opts...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Unload() })

	b := bus.New()
	require.NoError(t, drv.Attach(b))
	require.NoError(t, b.AddDevices(
		&bus.Device{Name: pcd.DefaultDriverName, ID: 0, Data: &pcd.PlatformData{Size: 512, Perm: pcd.PermReadWrite, Serial: "AXZ"}},
		&bus.Device{Name: pcd.DefaultDriverName, ID: 1, Data: &pcd.PlatformData{Size: 8, Perm: pcd.PermReadWrite, Serial: "CXZ"}},
	))

	out := &bytes.Buffer{}
	return New(e, drv, b, out), out, drv
}

func run(t *testing.T, s *Shell, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	require.True(t, s.Exec(line))
	return out.String()
}

func TestShellNodes(t *testing.T) {
	s, out, _ := newTestShell(t)

	got := run(t, s, out, "nodes")
	assert.Contains(t, got, "pcd-dev-0")
	assert.Contains(t, got, "pcd-dev-1")
	assert.Contains(t, got, `serial="AXZ"`)

	got = run(t, s, out, "devices")
	assert.Contains(t, got, "pseudo-char-device.0  bound to pseudo-char-device")

	got = run(t, s, out, "regions")
	assert.Contains(t, got, "pcd_driver")
}

func TestShellReadWrite(t *testing.T) {
	s, out, _ := newTestShell(t)

	assert.Equal(t, "fd 3: pcd-dev-0 (rw)\n", run(t, s, out, "open pcd-dev-0"))
	assert.Equal(t, "11 bytes written\n", run(t, s, out, "write 3 hello  world"))
	assert.Equal(t, "offset 0\n", run(t, s, out, "seek 3 0"))
	assert.Equal(t, "11 bytes: \"hello  world\"\n", run(t, s, out, "read 3 11"))
	assert.Contains(t, run(t, s, out, "files"), "fd 3: pcd-dev-0 (rw) offset=11")
	assert.Empty(t, run(t, s, out, "close 3"))
	assert.Contains(t, run(t, s, out, "read 3 1"), "error: descriptor 3: not found")
}

func TestShellTruncation(t *testing.T) {
	s, out, _ := newTestShell(t)

	run(t, s, out, "open pcd-dev-1 w")
	assert.Equal(t, "8 of 10 bytes written (device full)\n", run(t, s, out, "write 3 0123456789"))
	assert.Contains(t, run(t, s, out, "write 3 x"), "no space left on device")
}

func TestShellEndOfDevice(t *testing.T) {
	s, out, _ := newTestShell(t, pcd.WithSeekPolicy(pcd.SeekAbsolute))

	run(t, s, out, "open pcd-dev-1 r")
	assert.Equal(t, "offset 8\n", run(t, s, out, "seek 3 0 end"))
	assert.Equal(t, "0 bytes (end of device)\n", run(t, s, out, "read 3 4"))
}

func TestShellProbeRemove(t *testing.T) {
	s, out, drv := newTestShell(t)

	got := run(t, s, out, "probe 5 64 ro BXZ")
	assert.Contains(t, got, "pcd-dev-5")
	require.NotNil(t, drv.Instance(5))
	assert.Equal(t, pcd.PermReadOnly, drv.Instance(5).PlatformData().Perm)

	run(t, s, out, "open pcd-dev-5 r")
	assert.Equal(t, "pcd-dev-5 removed\n", run(t, s, out, "remove pcd-dev-5"))
	assert.Nil(t, drv.Instance(5))
	assert.Contains(t, run(t, s, out, "read 3 1"), "device not present")
	assert.Contains(t, run(t, s, out, "remove pcd-dev-5"), "not found")
}

func TestShellErrors(t *testing.T) {
	s, out, _ := newTestShell(t)

	tests := []struct {
		line string
		want string
	}{
		{"bogus", `unknown command "bogus"`},
		{"open", "usage: open"},
		{"open pcd-dev-9", "not found"},
		{"open pcd-dev-0 x", `invalid mode "x"`},
		{"read x 1", `invalid descriptor "x"`},
		{"seek 3", "usage: seek"},
		{"probe a 1 rw", `invalid id "a"`},
		{"probe 2 0 rw", "invalid device descriptor"},
		{"probe 2 8 sideways", "invalid parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := run(t, s, out, tt.line)
			assert.True(t, strings.HasPrefix(got, "error: "), got)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestShellScript(t *testing.T) {
	s, out, _ := newTestShell(t)

	script := `# demo
open pcd-dev-0 rw
write 3 hello

seek 3 0
read 3 5
quit
read 3 5
`
	require.NoError(t, s.RunScript(strings.NewReader(script)))

	got := out.String()
	assert.Contains(t, got, "pcd> open pcd-dev-0 rw\nfd 3: pcd-dev-0 (rw)\n")
	assert.Contains(t, got, "5 bytes: \"hello\"\n")
	assert.Equal(t, 1, strings.Count(got, "read 3 5"), "commands after quit must not run")
	assert.Empty(t, s.files)
}

func TestAfterFields(t *testing.T) {
	assert.Equal(t, "a  b", afterFields("write 3   a  b ", 2))
	assert.Equal(t, "", afterFields("write 3", 2))
	assert.Equal(t, "3 x", afterFields("  write\t3 x", 1))
}
