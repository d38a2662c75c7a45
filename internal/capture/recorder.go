package capture

import (
	"fmt"
	"strconv"
	"sync"

	"zetrace/internal/trace"
	"zetrace/internal/zeapi"
)

type signalRecord struct {
	graph GraphID
	cmd   uint32
}

// Recorder routes commands appended to command lists into capture graphs.
//
// It remembers which graph each command list currently captures into and
// which captured command last signalled each event. A command list that is
// not capturing starts capturing, as a fork, when it waits on an event
// signalled inside a capturing graph. A capturing list that waits on an
// event signalled by one of its unjoined children joins that child.
type Recorder struct {
	store *Store
	log   trace.Tracer

	mu      sync.Mutex
	targets map[zeapi.CommandListHandle]GraphID
	signals map[zeapi.EventHandle]signalRecord
}

func NewRecorder(store *Store, log trace.Tracer) *Recorder {
	if store == nil {
		store = NewStore()
	}
	return &Recorder{
		store:   store,
		log:     trace.OrNop(log),
		targets: make(map[zeapi.CommandListHandle]GraphID),
		signals: make(map[zeapi.EventHandle]signalRecord),
	}
}

func (r *Recorder) Store() *Store { return r.store }

// Target returns the graph cl captures into.
func (r *Recorder) Target(cl zeapi.CommandListHandle) (GraphID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.targets[cl]
	return g, ok
}

// Begin starts a new root capture on cl.
func (r *Recorder) Begin(cl zeapi.CommandListHandle) (GraphID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.targets[cl]; ok {
		return NoGraph, fmt.Errorf("begin capture on list %d: already capturing into %s", cl, r.store.SubgraphID(g))
	}
	g, err := r.store.NewGraph(cl, true)
	if err != nil {
		return NoGraph, err
	}
	r.targets[cl] = g
	trace.Point(r.log, trace.ScopeGraph, "graph.begin", "",
		"list", strconv.FormatUint(uint64(cl), 10),
		"graph", strconv.FormatUint(uint64(g), 10))
	return g, nil
}

// End stops the root capture started on cl, including every subgraph, and
// returns the root.
func (r *Recorder) End(cl zeapi.CommandListHandle) (GraphID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.targets[cl]
	if !ok {
		return NoGraph, fmt.Errorf("end capture on list %d: %w", cl, ErrNotCapturing)
	}
	if r.store.Parent(g) != NoGraph {
		return NoGraph, fmt.Errorf("end capture on list %d: %w", cl, ErrNotRoot)
	}
	if err := r.store.StopCapturing(g); err != nil {
		return NoGraph, err
	}
	for list, target := range r.targets {
		if r.store.Root(target) == g {
			delete(r.targets, list)
		}
	}
	for ev, sig := range r.signals {
		if r.store.Root(sig.graph) == g {
			delete(r.signals, ev)
		}
	}

	unjoined := len(r.store.UnjoinedForks(g))
	trace.Point(r.log, trace.ScopeGraph, "graph.end", "",
		"list", strconv.FormatUint(uint64(cl), 10),
		"graph", strconv.FormatUint(uint64(g), 10),
		"unjoined", strconv.Itoa(unjoined))
	return g, nil
}

// Record captures cmd appended to cl. It reports false when cl is neither
// capturing nor forked by cmd, in which case the command should execute
// normally.
func (r *Recorder) Record(cl zeapi.CommandListHandle, cmd Command) (GraphID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.targets[cl]
	if !ok {
		child, err := r.forkOnWait(cl, &cmd)
		if err != nil || child == NoGraph {
			return NoGraph, false, err
		}
		g = child
	}

	idx, err := r.store.Capture(g, cmd)
	if err != nil {
		return g, false, err
	}
	if ok {
		r.joinChildren(g, &cmd, idx)
	}
	if cmd.Signal != 0 {
		r.signals[cmd.Signal] = signalRecord{graph: g, cmd: idx}
	}
	return g, true, nil
}

func (r *Recorder) forkOnWait(cl zeapi.CommandListHandle, cmd *Command) (GraphID, error) {
	for _, w := range cmd.Waits {
		sig, ok := r.signals[w]
		if !ok || !r.store.Capturing(sig.graph) {
			continue
		}
		child, err := r.store.ForkTo(sig.graph, cl, w)
		if err != nil {
			return NoGraph, err
		}
		r.targets[cl] = child
		trace.Point(r.log, trace.ScopeGraph, "graph.fork", r.store.SubgraphID(child),
			"parent", r.store.SubgraphID(sig.graph),
			"event", strconv.FormatUint(uint64(w), 10))
		return child, nil
	}
	return NoGraph, nil
}

// joinChildren joins every unjoined child of g whose signal cmd, captured
// at idx, waits on.
func (r *Recorder) joinChildren(g GraphID, cmd *Command, idx uint32) {
	for _, w := range cmd.Waits {
		sig, ok := r.signals[w]
		if !ok || sig.graph == g || r.store.Parent(sig.graph) != g {
			continue
		}
		childList := r.store.Target(sig.graph)
		if !r.store.TryJoinAt(g, childList, w, idx) {
			continue
		}
		r.dropStopped()
		trace.Point(r.log, trace.ScopeGraph, "graph.join", r.store.SubgraphID(sig.graph),
			"parent", r.store.SubgraphID(g),
			"event", strconv.FormatUint(uint64(w), 10))
	}
}

// dropStopped forgets command lists whose graph no longer captures.
func (r *Recorder) dropStopped() {
	for list, target := range r.targets {
		if !r.store.Capturing(target) {
			delete(r.targets, list)
		}
	}
}

// Reset forgets the last signaller of ev, so that a later wait on ev no
// longer forks from it.
func (r *Recorder) Reset(ev zeapi.EventHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.signals, ev)
}
