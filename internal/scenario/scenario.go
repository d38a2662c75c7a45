// Package scenario replays a capture script, written in TOML, through a
// driver dispatch table.
//
//	capture = "main"
//
//	[[list]]
//	name = "main"
//
//	[[list]]
//	name = "side"
//
//	[[command]]
//	list = "main"
//	kind = "barrier"
//	signal = "e1"
//
//	[[command]]
//	list = "side"
//	kind = "copy"
//	wait = ["e1"]
//
// Events are created on first reference.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"zetrace/internal/capture"
	"zetrace/internal/config"
	"zetrace/internal/status"
	"zetrace/internal/zeapi"
)

type Scenario struct {
	Name     string    `toml:"name"`
	Capture  string    `toml:"capture"`
	Lists    []List    `toml:"list"`
	Commands []Command `toml:"command"`
}

type List struct {
	Name      string `toml:"name"`
	Immediate bool   `toml:"immediate"`
}

type Command struct {
	List   string   `toml:"list"`
	Kind   string   `toml:"kind"`
	Signal string   `toml:"signal"`
	Wait   []string `toml:"wait"`
	Size   uint64   `toml:"size"`
	Kernel string   `toml:"kernel"`
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	meta, err := toml.Decode(string(data), &s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	if !meta.IsDefined("capture") {
		return nil, errors.New("missing capture")
	}
	if err := s.normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

func (s *Scenario) normalize() error {
	s.Capture = config.NormalizeName(s.Capture)
	lists := make(map[string]struct{}, len(s.Lists))
	for i := range s.Lists {
		name := config.NormalizeName(s.Lists[i].Name)
		if name == "" {
			return fmt.Errorf("list %d: missing name", i)
		}
		if _, dup := lists[name]; dup {
			return fmt.Errorf("list %q declared twice", name)
		}
		lists[name] = struct{}{}
		s.Lists[i].Name = name
	}
	if _, ok := lists[s.Capture]; !ok {
		return fmt.Errorf("capture list %q is not declared", s.Capture)
	}

	for i := range s.Commands {
		c := &s.Commands[i]
		c.List = config.NormalizeName(c.List)
		c.Signal = config.NormalizeName(c.Signal)
		for j := range c.Wait {
			c.Wait[j] = config.NormalizeName(c.Wait[j])
		}
		if _, ok := lists[c.List]; !ok {
			return fmt.Errorf("command %d: unknown list %q", i, c.List)
		}
		kind, ok := capture.ParseKind(strings.TrimSpace(c.Kind))
		if !ok || !replayable(kind) {
			return fmt.Errorf("command %d: unsupported kind %q", i, c.Kind)
		}
		switch kind {
		case capture.KindWaitOnEvents:
			if len(c.Wait) == 0 {
				return fmt.Errorf("command %d: wait needs at least one event", i)
			}
		case capture.KindSignalEvent, capture.KindEventReset:
			if c.Signal == "" {
				return fmt.Errorf("command %d: %s needs signal", i, c.Kind)
			}
		}
	}
	return nil
}

func replayable(k capture.Kind) bool {
	switch k {
	case capture.KindBarrier, capture.KindMemoryCopy, capture.KindMemoryFill,
		capture.KindSignalEvent, capture.KindWaitOnEvents, capture.KindEventReset,
		capture.KindLaunchKernel, capture.KindWriteGlobalTimestamp:
		return true
	}
	return false
}

// Result is what a replay created.
type Result struct {
	Graph  zeapi.GraphHandle
	Lists  map[string]zeapi.CommandListHandle
	Events map[string]zeapi.EventHandle
}

type player struct {
	ctx context.Context
	ddi zeapi.DDITable
	hct zeapi.ContextHandle
	res *Result
}

// Replay creates the declared objects, captures every command on the capture
// list and returns the resulting graph handle. ctx carries the calling
// tracer thread, if any.
func Replay(ctx context.Context, ddi zeapi.DDITable, s *Scenario) (*Result, error) {
	p := &player{
		ctx: ctx,
		ddi: ddi,
		res: &Result{
			Lists:  make(map[string]zeapi.CommandListHandle, len(s.Lists)),
			Events: make(map[string]zeapi.EventHandle),
		},
	}
	if err := check("zeContextCreate", ddi.ContextCreate(ctx, &zeapi.ContextCreateParams{Desc: &zeapi.ContextDesc{}, PhContext: &p.hct})); err != nil {
		return nil, err
	}
	for _, l := range s.Lists {
		var h zeapi.CommandListHandle
		var code status.Code
		if l.Immediate {
			code = ddi.CommandListCreateImmediate(ctx, &zeapi.CommandListCreateImmediateParams{HContext: p.hct, Desc: &zeapi.CommandListDesc{}, PhCommandList: &h})
		} else {
			code = ddi.CommandListCreate(ctx, &zeapi.CommandListCreateParams{HContext: p.hct, Desc: &zeapi.CommandListDesc{}, PhCommandList: &h})
		}
		if err := check("create list "+l.Name, code); err != nil {
			return nil, err
		}
		p.res.Lists[l.Name] = h
	}

	main := p.res.Lists[s.Capture]
	if err := check("begin capture", ddi.CommandListBeginGraphCapture(ctx, &zeapi.CommandListBeginGraphCaptureParams{HCommandList: main})); err != nil {
		return nil, err
	}
	for i := range s.Commands {
		if err := p.play(&s.Commands[i]); err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
	}
	if err := check("end capture", ddi.CommandListEndGraphCapture(ctx, &zeapi.CommandListEndGraphCaptureParams{HCommandList: main, PhGraph: &p.res.Graph})); err != nil {
		return nil, err
	}
	return p.res, nil
}

func check(op string, code status.Code) error {
	if code.OK() {
		return nil
	}
	return status.New(op, code)
}

func (p *player) event(name string) (zeapi.EventHandle, error) {
	if name == "" {
		return 0, nil
	}
	if h, ok := p.res.Events[name]; ok {
		return h, nil
	}
	var h zeapi.EventHandle
	if err := check("create event "+name, p.ddi.EventCreate(p.ctx, &zeapi.EventCreateParams{HContext: p.hct, Desc: &zeapi.EventDesc{}, PhEvent: &h})); err != nil {
		return 0, err
	}
	p.res.Events[name] = h
	return h, nil
}

func (p *player) play(c *Command) error {
	cl := p.res.Lists[c.List]
	signal, err := p.event(c.Signal)
	if err != nil {
		return err
	}
	var waits []zeapi.EventHandle
	for _, name := range c.Wait {
		h, err := p.event(name)
		if err != nil {
			return err
		}
		waits = append(waits, h)
	}
	size := c.Size
	if size == 0 {
		size = 64
	}

	kind, _ := capture.ParseKind(strings.TrimSpace(c.Kind))
	var code status.Code
	switch kind {
	case capture.KindBarrier:
		code = p.ddi.CommandListAppendBarrier(p.ctx, &zeapi.CommandListAppendBarrierParams{HCommandList: cl, HSignalEvent: signal, WaitEvents: waits})
	case capture.KindMemoryCopy:
		code = p.ddi.CommandListAppendMemoryCopy(p.ctx, &zeapi.CommandListAppendMemoryCopyParams{HCommandList: cl, Dst: 0x1000, Src: 0x2000, Size: size, HSignalEvent: signal, WaitEvents: waits})
	case capture.KindMemoryFill:
		code = p.ddi.CommandListAppendMemoryFill(p.ctx, &zeapi.CommandListAppendMemoryFillParams{HCommandList: cl, Ptr: 0x1000, Pattern: []byte{0}, Size: size, HSignalEvent: signal, WaitEvents: waits})
	case capture.KindSignalEvent:
		code = p.ddi.CommandListAppendSignalEvent(p.ctx, &zeapi.CommandListAppendSignalEventParams{HCommandList: cl, HEvent: signal})
	case capture.KindWaitOnEvents:
		code = p.ddi.CommandListAppendWaitOnEvents(p.ctx, &zeapi.CommandListAppendWaitOnEventsParams{HCommandList: cl, Events: waits})
	case capture.KindEventReset:
		code = p.ddi.CommandListAppendEventReset(p.ctx, &zeapi.CommandListAppendEventResetParams{HCommandList: cl, HEvent: signal})
	case capture.KindLaunchKernel:
		name := c.Kernel
		if name == "" {
			name = "kernel"
		}
		code = p.ddi.CommandListAppendLaunchKernel(p.ctx, &zeapi.CommandListAppendLaunchKernelParams{HCommandList: cl, KernelName: name, GroupCount: zeapi.GroupCount{X: 1, Y: 1, Z: 1}, HSignalEvent: signal, WaitEvents: waits})
	case capture.KindWriteGlobalTimestamp:
		code = p.ddi.CommandListAppendWriteGlobalTimestamp(p.ctx, &zeapi.CommandListAppendWriteGlobalTimestampParams{HCommandList: cl, Dst: 0x3000, HSignalEvent: signal, WaitEvents: waits})
	default:
		return fmt.Errorf("unsupported kind %q", c.Kind)
	}
	return check(kind.Label(), code)
}
