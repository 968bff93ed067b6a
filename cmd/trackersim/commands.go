package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/plugin-tracker/dispatch"
	"github.com/wippyai/plugin-tracker/handle"
	"github.com/wippyai/plugin-tracker/tracker"
)

// session runs interactive commands against a tracker behind a queue.
type session struct {
	queue    *dispatch.Queue
	commands map[string]command
}

type command struct {
	run   func(t *tracker.Tracker, arg uint32, rest []string) (string, error)
	usage string
	args  int
}

func newSession(q *dispatch.Queue) *session {
	s := &session{queue: q}
	s.commands = map[string]command{
		"module":   {usage: "module", run: s.module},
		"rmmodule": {usage: "rmmodule M", args: 1, run: s.removeModule},
		"instance": {usage: "instance M", args: 1, run: s.instance},
		"crash":    {usage: "crash I", args: 1, run: s.crash},
		"delete":   {usage: "delete I", args: 1, run: s.delete},
		"resource": {usage: "resource I", args: 1, run: s.resource},
		"var":      {usage: "var I", args: 1, run: s.variable},
		"bridge":   {usage: "bridge I OBJECT", args: 2, run: s.bridge},
		"addref":   {usage: "addref rN|vN", args: 1, run: s.addRef},
		"unref":    {usage: "unref rN|vN", args: 1, run: s.unref},
	}
	return s
}

// usage lists the commands in a stable order.
func (s *session) usage() string {
	order := []string{"module", "instance", "resource", "var", "bridge", "addref", "unref", "crash", "delete", "rmmodule"}
	parts := make([]string, len(order))
	for i, name := range order {
		parts[i] = s.commands[name].usage
	}
	return strings.Join(parts, " • ")
}

// execute parses and runs one command line.
func (s *session) execute(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd, ok := s.commands[fields[0]]
	if !ok {
		return "", fmt.Errorf("unknown command %q; try: %s", fields[0], s.usage())
	}
	if len(fields)-1 < cmd.args {
		return "", fmt.Errorf("usage: %s", cmd.usage)
	}

	var arg uint32
	if cmd.args > 0 {
		n, err := parseHandle(fields[1])
		if err != nil {
			return "", err
		}
		arg = n
	}

	var out string
	var runErr error
	err := s.queue.Do(ctx, func(t *tracker.Tracker) {
		out, runErr = cmd.run(t, arg, fields[1:])
	})
	if err != nil {
		return "", err
	}
	return out, runErr
}

// parseHandle accepts N, rN, vN, mN and iN.
func parseHandle(s string) (uint32, error) {
	trimmed := strings.TrimLeft(s, "rvmi")
	n, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid handle %q", s)
	}
	return uint32(n), nil
}

func isVar(arg string) bool {
	return strings.HasPrefix(arg, "v")
}

func okText(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

func (s *session) module(t *tracker.Tracker, _ uint32, _ []string) (string, error) {
	m := t.AddModule(fmt.Sprintf("module-%d", len(t.Modules())+1))
	return fmt.Sprintf("added module m%d", m), nil
}

func (s *session) removeModule(t *tracker.Tracker, m uint32, _ []string) (string, error) {
	return okText(t.RemoveModule(handle.Module(m)), fmt.Sprintf("removed m%d", m), fmt.Sprintf("m%d not found", m)), nil
}

func (s *session) instance(t *tracker.Tracker, m uint32, _ []string) (string, error) {
	inst, err := t.AddInstance(handle.Module(m))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("added instance i%d under m%d", inst, m), nil
}

func (s *session) crash(t *tracker.Tracker, inst uint32, _ []string) (string, error) {
	return okText(t.NotifyInstanceCrashed(handle.Instance(inst)), fmt.Sprintf("crashed i%d", inst), fmt.Sprintf("i%d not found", inst)), nil
}

func (s *session) delete(t *tracker.Tracker, inst uint32, _ []string) (string, error) {
	return okText(t.NotifyInstanceDeleted(handle.Instance(inst)), fmt.Sprintf("deleted i%d", inst), fmt.Sprintf("i%d not found", inst)), nil
}

func (s *session) resource(t *tracker.Tracker, inst uint32, _ []string) (string, error) {
	r, err := t.CreateResource(struct{}{}, handle.Instance(inst))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("created r%d in i%d", r, inst), nil
}

func (s *session) variable(t *tracker.Tracker, inst uint32, _ []string) (string, error) {
	v, err := t.CreateVar(struct{}{}, handle.Instance(inst))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("created v%d in i%d", v, inst), nil
}

func (s *session) bridge(t *tracker.Tracker, inst uint32, rest []string) (string, error) {
	object := rest[1]
	created := false
	v, err := t.FindOrCreateBridgeVar(handle.Instance(inst), object, func() (any, error) {
		created = true
		return object, nil
	})
	if err != nil {
		return "", err
	}
	return okText(created, fmt.Sprintf("bridged %q as v%d", object, v), fmt.Sprintf("reused v%d for %q", v, object)), nil
}

func (s *session) addRef(t *tracker.Tracker, h uint32, rest []string) (string, error) {
	if isVar(rest[0]) {
		return okText(t.AddRefVar(handle.Var(h)), fmt.Sprintf("v%d refs up", h), fmt.Sprintf("v%d not live", h)), nil
	}
	return okText(t.AddRefResource(handle.Resource(h)), fmt.Sprintf("r%d refs up", h), fmt.Sprintf("r%d not live", h)), nil
}

func (s *session) unref(t *tracker.Tracker, h uint32, rest []string) (string, error) {
	if isVar(rest[0]) {
		return okText(t.UnrefVar(handle.Var(h)), fmt.Sprintf("v%d refs down", h), fmt.Sprintf("v%d not tracked", h)), nil
	}
	return okText(t.UnrefResource(handle.Resource(h)), fmt.Sprintf("r%d refs down", h), fmt.Sprintf("r%d not tracked", h)), nil
}

// instanceRow is one line of the instance table.
type instanceRow struct {
	state     string
	instance  handle.Instance
	module    handle.Module
	resources int
	vars      int
}

func (s *session) snapshot(ctx context.Context) ([]instanceRow, tracker.Stats, error) {
	var rows []instanceRow
	var stats tracker.Stats
	err := s.queue.Do(ctx, func(t *tracker.Tracker) {
		for _, h := range t.Instances() {
			rec, ok := t.LookupInstance(h)
			if !ok {
				continue
			}
			rows = append(rows, instanceRow{
				instance:  h,
				module:    rec.Module,
				state:     rec.State.String(),
				resources: len(rec.Resources()),
				vars:      len(rec.Vars()),
			})
		}
		stats = t.Stats()
	})
	return rows, stats, err
}
