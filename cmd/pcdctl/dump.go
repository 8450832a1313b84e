package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ardnew/softpcd/pkg/trace"
)

// dumpTrace prints the events of a trace file, one per line.
func dumpTrace(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	node := fs.String("node", "", "Only events for this node")
	session := fs.String("session", "", "Only events for this session ID")
	failed := fs.Bool("failed", false, "Only failed operations")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: pcdctl trace [-node N] [-session ID] [-failed] FILE")
	}

	r, err := trace.NewFilteredReader(fs.Arg(0), trace.Filter{
		Node:       *node,
		SessionID:  *session,
		FailedOnly: *failed,
	})
	if err != nil {
		return err
	}
	defer r.Close()

	count := 0
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("trace event %d: %w", count, err)
		}
		fmt.Fprintln(w, formatEvent(event))
		count++
	}
	fmt.Fprintf(w, "%d events\n", count)
	return nil
}

func formatEvent(e trace.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-6s", e.Timestamp.Format(time.RFC3339Nano), e.Op)
	if e.Node != "" {
		fmt.Fprintf(&b, " %s", e.Node)
	}
	if e.Device != "" {
		fmt.Fprintf(&b, " [%s]", e.Device)
	}
	if e.Serial != "" {
		fmt.Fprintf(&b, " serial=%s", e.Serial)
	}
	if e.SessionID != "" {
		fmt.Fprintf(&b, " session=%s", e.SessionID)
	}
	switch e.Op {
	case trace.OpRead, trace.OpWrite:
		fmt.Fprintf(&b, " %d/%d bytes offset=%d", e.Transferred, e.Requested, e.Offset)
		if e.Truncated {
			b.WriteString(" truncated")
		}
	case trace.OpSeek:
		fmt.Fprintf(&b, " offset=%d", e.Offset)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	return b.String()
}
