package stress

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"zetrace/internal/driver"
	"zetrace/internal/observ"
	"zetrace/internal/status"
	"zetrace/internal/trace"
	"zetrace/internal/tracer"
	"zetrace/internal/zeapi"
)

// recreateEvery is how many toggles pass between destroy and recreate
// cycles of one tracer slot.
const recreateEvery = 8

type slot struct {
	name       string
	tracer     *tracer.Tracer
	prologues  atomic.Uint64
	epilogues  atomic.Uint64
	mismatched atomic.Uint64
	toggles    int
	recreated  int
}

func (s *slot) callbacks() (pro, epi zeapi.CallbackTable) {
	pro.Set(zeapi.APICommandListAppendBarrier, zeapi.On(func(p *zeapi.CommandListAppendBarrierParams, _ status.Code, _ any, inst *any) {
		s.prologues.Add(1)
		*inst = p.HCommandList
	}))
	epi.Set(zeapi.APICommandListAppendBarrier, zeapi.On(func(p *zeapi.CommandListAppendBarrierParams, _ status.Code, _ any, inst *any) {
		s.epilogues.Add(1)
		if h, ok := (*inst).(zeapi.CommandListHandle); !ok || h != p.HCommandList {
			s.mismatched.Add(1)
		}
	}))
	return pro, epi
}

type runner struct {
	req   *Request
	log   trace.Tracer
	tc    *tracer.Context
	drv   *driver.Driver
	ddi   zeapi.DDITable
	slots []*slot
}

// Run executes the stress scenario described by req.
func Run(ctx context.Context, req *Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}
	r := &runner{req: req, log: trace.OrNop(req.Log)}
	timer := observ.NewTimer()
	res := Result{Timer: timer}

	idx := timer.Begin("setup")
	r.tc = tracer.NewContext(tracer.Options{
		Enabled:    !req.Disabled,
		MaxThreads: req.MaxThreads,
		DrainPoll:  req.DrainPoll,
		Log:        r.log,
	})
	defer func() { _ = r.tc.Close() }()
	r.drv = driver.New(driver.Options{Log: r.log})
	r.ddi = tracer.Wrap(r.drv.DDI())

	ctl := r.tc.NewThread()
	defer ctl.Close()
	lists, err := r.setup(tracer.WithThread(ctx, ctl))
	if err != nil {
		return res, err
	}
	timer.End(idx, strconv.Itoa(len(r.slots))+" tracers")

	trace.Point(r.log, trace.ScopeRuntime, "stress.begin", "",
		"workers", strconv.Itoa(req.Workers),
		"calls", strconv.Itoa(req.Calls),
		"toggles", strconv.Itoa(req.Toggles))

	idx = timer.Begin("dispatch")
	span := trace.Begin(r.log, trace.ScopeRuntime, "stress.dispatch", trace.ParentSpan(ctx))
	toggles, err := r.dispatch(ctx, ctl, lists)
	span.End(strconv.Itoa(toggles) + " toggles")
	res.Toggles = toggles
	res.Calls = r.drv.Calls(zeapi.APICommandListAppendBarrier)
	timer.EndOps(idx, res.Calls, strconv.Itoa(toggles)+" toggles")
	if err != nil {
		return res, err
	}

	idx = timer.Begin("teardown")
	if err := r.teardown(ctl); err != nil {
		return res, err
	}
	timer.End(idx, "")

	res.Tracers = r.report()
	res.Context = r.tc.Stats()
	res.Driver = r.drv.Stats()
	trace.Point(r.log, trace.ScopeRuntime, "stress.end", "",
		"calls", strconv.FormatUint(res.Calls, 10),
		"reclaimed", strconv.FormatUint(res.Context.Reclaimed, 10))
	return res, r.verify(&res)
}

func validate(req *Request) error {
	switch {
	case req == nil:
		return fmt.Errorf("stress: missing request")
	case req.Workers <= 0:
		return fmt.Errorf("stress: workers must be positive, got %d", req.Workers)
	case req.Calls < 0 || req.Toggles < 0:
		return fmt.Errorf("stress: calls and toggles must not be negative")
	case !req.Disabled && len(req.Tracers) == 0:
		return fmt.Errorf("stress: at least one tracer name is required")
	}
	return nil
}

func (r *runner) setup(ctx context.Context) ([]zeapi.CommandListHandle, error) {
	var hct zeapi.ContextHandle
	if code := r.ddi.ContextCreate(ctx, &zeapi.ContextCreateParams{Desc: &zeapi.ContextDesc{}, PhContext: &hct}); !code.OK() {
		return nil, status.New("stress.context_create", code)
	}
	lists := make([]zeapi.CommandListHandle, r.req.Workers)
	for i := range lists {
		p := &zeapi.CommandListCreateParams{HContext: hct, Desc: &zeapi.CommandListDesc{}, PhCommandList: &lists[i]}
		if code := r.ddi.CommandListCreate(ctx, p); !code.OK() {
			return nil, status.New("stress.list_create", code)
		}
	}
	if r.req.Disabled {
		return lists, nil
	}

	ctl := tracer.ThreadFromContext(ctx)
	for _, name := range r.req.Tracers {
		s := &slot{name: name}
		if err := r.install(ctl, s); err != nil {
			return nil, err
		}
		r.slots = append(r.slots, s)
	}
	return lists, nil
}

// install creates and enables a tracer for s.
func (r *runner) install(ctl *tracer.Thread, s *slot) error {
	t, err := r.tc.CreateTracer(&tracer.Desc{Name: s.name, UserData: s})
	if err != nil {
		return fmt.Errorf("create tracer %q: %w", s.name, err)
	}
	pro, epi := s.callbacks()
	if err := t.SetPrologues(&pro); err != nil {
		return err
	}
	if err := t.SetEpilogues(&epi); err != nil {
		return err
	}
	if err := r.tc.Enable(ctl, t, true); err != nil {
		return fmt.Errorf("enable tracer %q: %w", s.name, err)
	}
	s.tracer = t
	return nil
}

func (r *runner) dispatch(ctx context.Context, ctl *tracer.Thread, lists []zeapi.CommandListHandle) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	for w := range r.req.Workers {
		emit(r.req.Progress, Event{Worker: w, Status: StatusQueued})
	}
	for w := range r.req.Workers {
		g.Go(func() error {
			err := r.work(gctx, w, lists[w])
			st := StatusDone
			if err != nil {
				st = StatusError
			}
			emit(r.req.Progress, Event{Worker: w, Done: r.req.Calls, Status: st})
			return err
		})
	}

	toggles := 0
	if !r.req.Disabled && len(r.slots) > 0 {
		g.Go(func() error {
			n, err := r.control(gctx, ctl)
			toggles = n
			return err
		})
	}
	err := g.Wait()
	return toggles, err
}

func (r *runner) work(ctx context.Context, w int, cl zeapi.CommandListHandle) error {
	th := r.tc.NewThread()
	defer th.Close()
	tctx := tracer.WithThread(ctx, th)

	step := max(r.req.Calls/50, 1)
	for i := range r.req.Calls {
		if i%step == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			emit(r.req.Progress, Event{Worker: w, Done: i, Status: StatusRunning})
		}
		p := zeapi.CommandListAppendBarrierParams{HCommandList: cl}
		if code := r.ddi.CommandListAppendBarrier(tctx, &p); !code.OK() {
			return status.New(fmt.Sprintf("stress.worker[%d]", w), code)
		}
	}
	return nil
}

// control cycles through the slots: disable, wait for the drain, then
// enable again. Every recreateEvery toggles of a slot its tracer is
// destroyed and a fresh one installed in its place.
func (r *runner) control(ctx context.Context, ctl *tracer.Thread) (int, error) {
	for i := range r.req.Toggles {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		s := r.slots[i%len(r.slots)]
		if err := r.tc.Enable(ctl, s.tracer, false); err != nil {
			return i, fmt.Errorf("disable %q: %w", s.name, err)
		}
		if err := r.tc.FinalizeDisableWait(s.tracer); err != nil {
			return i, fmt.Errorf("drain %q: %w", s.name, err)
		}
		s.toggles++
		if s.toggles%recreateEvery == 0 {
			if err := r.tc.DestroyTracer(ctl, s.tracer); err != nil {
				return i, fmt.Errorf("destroy %q: %w", s.name, err)
			}
			if err := r.install(ctl, s); err != nil {
				return i, err
			}
			s.recreated++
		} else if err := r.tc.Enable(ctl, s.tracer, true); err != nil {
			return i, fmt.Errorf("enable %q: %w", s.name, err)
		}
		emit(r.req.Progress, Event{
			Worker: ControllerWorker,
			Done:   i + 1,
			Status: StatusRunning,
			Note:   fmt.Sprintf("toggle %d/%d", i+1, r.req.Toggles),
		})
	}
	return r.req.Toggles, nil
}

func (r *runner) teardown(ctl *tracer.Thread) error {
	for _, s := range r.slots {
		if err := r.tc.Enable(ctl, s.tracer, false); err != nil {
			return fmt.Errorf("disable %q: %w", s.name, err)
		}
		if err := r.tc.DestroyTracer(ctl, s.tracer); err != nil {
			return fmt.Errorf("destroy %q: %w", s.name, err)
		}
	}
	return nil
}

func (r *runner) report() []TracerReport {
	out := make([]TracerReport, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, TracerReport{
			Name:       s.name,
			Prologues:  s.prologues.Load(),
			Epilogues:  s.epilogues.Load(),
			Mismatched: s.mismatched.Load(),
			Recreated:  s.recreated,
		})
	}
	return out
}

func (r *runner) verify(res *Result) error {
	want := uint64(r.req.Workers) * uint64(r.req.Calls)
	if res.Calls != want {
		return fmt.Errorf("%w: %d driver calls, want %d", ErrInvariant, res.Calls, want)
	}
	for _, t := range res.Tracers {
		if t.Prologues != t.Epilogues {
			return fmt.Errorf("%w: tracer %q ran %d prologues and %d epilogues", ErrInvariant, t.Name, t.Prologues, t.Epilogues)
		}
		if t.Mismatched != 0 {
			return fmt.Errorf("%w: tracer %q lost instance data %d times", ErrInvariant, t.Name, t.Mismatched)
		}
		if t.Prologues > want {
			return fmt.Errorf("%w: tracer %q saw %d calls, more than %d issued", ErrInvariant, t.Name, t.Prologues, want)
		}
	}
	if res.Context.Enabled != 0 || res.Context.Retiring != 0 {
		return fmt.Errorf("%w: %d tracers enabled and %d arrays retiring after teardown", ErrInvariant, res.Context.Enabled, res.Context.Retiring)
	}
	return nil
}
