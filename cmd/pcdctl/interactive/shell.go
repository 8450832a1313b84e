// Package interactive provides the command shell for pcdctl.
package interactive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/chzyer/readline"

	"github.com/ardnew/softpcd/bus"
	"github.com/ardnew/softpcd/pcd"
	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pcd/env/mem"
	"github.com/ardnew/softpcd/pkg"
)

// Host is the environment the shell opens nodes in.
type Host interface {
	OpenNode(name string, flags env.OpenFlags) (env.File, error)
	Nodes() []mem.Node
	Regions() []mem.Region
}

// Shell runs pcdctl commands against a loaded driver.
type Shell struct {
	host   Host
	driver *pcd.Driver
	bus    *bus.Bus
	out    io.Writer

	// Open files by descriptor
	files  map[int]env.File
	nodes  map[int]string
	nextFD int
}

// New creates a shell writing its output to out.
func New(host Host, drv *pcd.Driver, b *bus.Bus, out io.Writer) *Shell {
	return &Shell{
		host:   host,
		driver: drv,
		bus:    b,
		out:    out,
		files:  make(map[int]env.File),
		nodes:  make(map[int]string),
		nextFD: 3,
	}
}

// Run reads commands from the terminal until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pcd> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s.out = rl.Stdout()
	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}

		if !s.Exec(line) {
			return nil
		}
	}
}

// RunScript executes one command per line from r. Blank lines and lines
// starting with '#' are skipped.
func (s *Shell) RunScript(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fmt.Fprintf(s.out, "pcd> %s\n", line)
		if !s.Exec(line) {
			break
		}
	}
	return scanner.Err()
}

// Exec runs a single command line. It returns false when the shell should
// stop.
func (s *Shell) Exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	pkg.LogDebug(pkg.ComponentCLI, "command", "cmd", cmd, "args", len(args))

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "nodes", "ls":
		s.cmdNodes()
	case "devices":
		s.cmdDevices()
	case "regions":
		s.cmdRegions()
	case "open", "o":
		err = s.cmdOpen(args)
	case "read", "r":
		err = s.cmdRead(args)
	case "write", "w":
		err = s.cmdWrite(line, args)
	case "seek":
		err = s.cmdSeek(args)
	case "close", "c":
		err = s.cmdClose(args)
	case "files":
		s.cmdFiles()
	case "probe", "add":
		err = s.cmdProbe(args)
	case "remove", "rm":
		err = s.cmdRemove(args)
	case "quit", "exit", "q":
		s.CloseAll()
		return false
	default:
		err = fmt.Errorf("unknown command %q (type 'help')", cmd)
	}

	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return true
}

// CloseAll closes every open descriptor.
func (s *Shell) CloseAll() {
	for _, fd := range s.fds() {
		_ = s.files[fd].Close()
		delete(s.files, fd)
		delete(s.nodes, fd)
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `Commands:
  nodes                       List published device nodes
  devices                     List platform devices on the bus
  regions                     List reserved device number ranges
  open <node> [r|w|rw]        Open a node (default rw), prints a descriptor
  read <fd> <count>           Read up to count bytes
  write <fd> <text>           Write text
  seek <fd> <offset> [start|cur|end]
  close <fd>                  Close a descriptor
  files                       List open descriptors
  probe <id> <size> <perm> [serial]
                              Announce a new device
  remove <node>               Withdraw the device behind a node
  quit                        Exit`)
}

func (s *Shell) cmdNodes() {
	nodes := s.host.Nodes()
	if len(nodes) == 0 {
		fmt.Fprintln(s.out, "no nodes")
		return
	}
	for _, n := range nodes {
		line := fmt.Sprintf("%-12s %-10s %s", n.Name, n.Num, n.Class)
		if inst := s.instance(n.Name); inst != nil {
			data := inst.PlatformData()
			line += fmt.Sprintf("  size=%d perm=%s serial=%q sessions=%d",
				data.Size, data.Perm, data.Serial, inst.Sessions())
		}
		fmt.Fprintln(s.out, line)
	}
}

func (s *Shell) cmdDevices() {
	devs := s.bus.Devices()
	if len(devs) == 0 {
		fmt.Fprintln(s.out, "no devices")
		return
	}
	for _, d := range devs {
		state := "unbound"
		if d.Bound() {
			state = "bound to " + d.Driver
		}
		fmt.Fprintf(s.out, "%s.%d  %s\n", d.Name, d.ID, state)
	}
}

func (s *Shell) cmdRegions() {
	for _, r := range s.host.Regions() {
		fmt.Fprintf(s.out, "%-16s base=%s count=%d\n", r.Name, r.Base, r.Count)
	}
}

func (s *Shell) cmdOpen(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: open <node> [r|w|rw]")
	}
	flags := env.OpenReadWrite
	if len(args) == 2 {
		var err error
		if flags, err = parseMode(args[1]); err != nil {
			return err
		}
	}

	f, err := s.host.OpenNode(args[0], flags)
	if err != nil {
		return err
	}

	fd := s.nextFD
	s.nextFD++
	s.files[fd] = f
	s.nodes[fd] = args[0]
	fmt.Fprintf(s.out, "fd %d: %s (%s)\n", fd, args[0], flags)
	return nil
}

func (s *Shell) cmdRead(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: read <fd> <count>")
	}
	f, err := s.file(args[0])
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(args[1])
	if err != nil || count < 0 {
		return fmt.Errorf("invalid count %q", args[1])
	}

	p := make([]byte, count)
	n, err := f.Read(p)
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(s.out, "0 bytes (end of device)")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d bytes: %q\n", n, p[:n])
	return nil
}

func (s *Shell) cmdWrite(line string, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: write <fd> <text>")
	}
	f, err := s.file(args[0])
	if err != nil {
		return err
	}

	text := afterFields(line, 2)

	n, err := f.Write([]byte(text))
	if err != nil {
		return err
	}
	if n < len(text) {
		fmt.Fprintf(s.out, "%d of %d bytes written (device full)\n", n, len(text))
		return nil
	}
	fmt.Fprintf(s.out, "%d bytes written\n", n)
	return nil
}

func (s *Shell) cmdSeek(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: seek <fd> <offset> [start|cur|end]")
	}
	f, err := s.file(args[0])
	if err != nil {
		return err
	}
	offset, err := strconv.ParseInt(args[1], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q", args[1])
	}
	whence := io.SeekStart
	if len(args) == 3 {
		switch strings.ToLower(args[2]) {
		case "start", "set":
			whence = io.SeekStart
		case "cur", "current":
			whence = io.SeekCurrent
		case "end":
			whence = io.SeekEnd
		default:
			return fmt.Errorf("invalid whence %q", args[2])
		}
	}

	pos, err := f.Seek(offset, whence)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "offset %d\n", pos)
	return nil
}

func (s *Shell) cmdClose(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: close <fd>")
	}
	f, err := s.file(args[0])
	if err != nil {
		return err
	}
	fd, _ := strconv.Atoi(args[0])
	delete(s.files, fd)
	delete(s.nodes, fd)
	return f.Close()
}

func (s *Shell) cmdFiles() {
	fds := s.fds()
	if len(fds) == 0 {
		fmt.Fprintln(s.out, "no open files")
		return
	}
	for _, fd := range fds {
		line := fmt.Sprintf("fd %d: %s", fd, s.nodes[fd])
		if sess, ok := s.files[fd].(*pcd.Session); ok {
			line += fmt.Sprintf(" (%s) offset=%d session=%s", sess.Flags(), sess.Offset(), sess.ID())
		}
		fmt.Fprintln(s.out, line)
	}
}

func (s *Shell) cmdProbe(args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errors.New("usage: probe <id> <size> <perm> [serial]")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	size, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return fmt.Errorf("invalid size %q", args[1])
	}
	perm, err := pcd.ParsePermission(args[2])
	if err != nil {
		return err
	}
	data := &pcd.PlatformData{Size: uint32(size), Perm: perm}
	if len(args) == 4 {
		data.Serial = args[3]
	}

	dev := &bus.Device{Name: s.driver.Config().DriverName, ID: id, Data: data}
	if err := s.bus.AddDevices(dev); err != nil {
		return err
	}
	if inst := s.driver.Instance(id); inst != nil {
		fmt.Fprintf(s.out, "%s: %s\n", inst.Node(), inst.Num())
	}
	return nil
}

func (s *Shell) cmdRemove(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: remove <node>")
	}
	inst := s.instance(args[0])
	if inst == nil {
		return fmt.Errorf("node %q: %w", args[0], pkg.ErrNotFound)
	}

	if err := s.driver.Remove(inst); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s removed\n", args[0])
	return nil
}

func (s *Shell) instance(node string) *pcd.Instance {
	for _, inst := range s.driver.Instances() {
		if inst.Node() == node {
			return inst
		}
	}
	return nil
}

func (s *Shell) file(arg string) (env.File, error) {
	fd, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid descriptor %q", arg)
	}
	f, ok := s.files[fd]
	if !ok {
		return nil, fmt.Errorf("descriptor %d: %w", fd, pkg.ErrNotFound)
	}
	return f, nil
}

func (s *Shell) fds() []int {
	fds := make([]int, 0, len(s.files))
	for fd := range s.files {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	return fds
}

// afterFields returns line with its first n fields and the following spaces
// removed, keeping the inner spacing of the rest.
func afterFields(line string, n int) string {
	rest := strings.TrimSpace(line)
	for range n {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			return ""
		}
		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}
	return rest
}

func parseMode(s string) (env.OpenFlags, error) {
	switch strings.ToLower(s) {
	case "r", "ro":
		return env.OpenRead, nil
	case "w", "wo":
		return env.OpenWrite, nil
	case "rw":
		return env.OpenReadWrite, nil
	}
	return 0, fmt.Errorf("invalid mode %q", s)
}
