package capture

import (
	"errors"
	"fmt"
	"sync"

	"fortio.org/safecast"

	"zetrace/internal/zeapi"
)

// GraphID addresses a graph inside a Store.
type GraphID uint32

// NoGraph is the parent of a root graph.
const NoGraph GraphID = ^GraphID(0)

// State is the capture state of a single graph.
type State uint8

const (
	NotCapturing State = iota
	Capturing
	Stopped
)

func (s State) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case Stopped:
		return "stopped"
	}
	return "not-capturing"
}

var (
	ErrUnknownGraph  = errors.New("unknown graph")
	ErrReleased      = errors.New("graph released")
	ErrNotCapturing  = errors.New("graph is not capturing")
	ErrDuplicateFork = errors.New("command list already forked and not joined")
	ErrNoForkCommand = errors.New("no command to fork from")
	ErrNotRoot       = errors.New("graph is not a root")
)

// Fork describes a child graph created from a parent command.
type Fork struct {
	Child       GraphID
	CommandList zeapi.CommandListHandle
	ForkEvent   zeapi.EventHandle
	ForkCommand uint32
	Joined      bool
	JoinCommand uint32
	JoinEvent   zeapi.EventHandle
}

type graph struct {
	parent   GraphID
	root     GraphID
	level    uint32
	sibling  uint32
	state    State
	target   zeapi.CommandListHandle
	commands []Command
	forks    []Fork
	released bool
}

// Store owns every graph of one or more captures. All methods are safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	graphs []*graph
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) get(g GraphID) (*graph, error) {
	if int(g) >= len(s.graphs) || g == NoGraph {
		return nil, fmt.Errorf("graph %d: %w", g, ErrUnknownGraph)
	}
	gr := s.graphs[g]
	if gr.released {
		return nil, fmt.Errorf("graph %d: %w", g, ErrReleased)
	}
	return gr, nil
}

func (s *Store) add(gr *graph) (GraphID, error) {
	id, err := safecast.Conv[GraphID](len(s.graphs))
	if err != nil || id == NoGraph {
		return NoGraph, fmt.Errorf("graph store full: %w", err)
	}
	s.graphs = append(s.graphs, gr)
	return id, nil
}

// NewGraph creates a root graph whose commands come from target.
func (s *Store) NewGraph(target zeapi.CommandListHandle, capturing bool) (GraphID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gr := &graph{parent: NoGraph, target: target}
	if capturing {
		gr.state = Capturing
	}
	id, err := s.add(gr)
	if err != nil {
		return NoGraph, err
	}
	gr.root = id
	return id, nil
}

// StartCapturing moves a graph that is not capturing yet into capture.
func (s *Store) StartCapturing(g GraphID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gr, err := s.get(g)
	if err != nil {
		return err
	}
	if gr.state != NotCapturing {
		return fmt.Errorf("start capture on %s: already %s", gr.id(), gr.state)
	}
	gr.state = Capturing
	return nil
}

// Capture appends cmd to g and returns its command index.
func (s *Store) Capture(g GraphID, cmd Command) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gr, err := s.get(g)
	if err != nil {
		return 0, err
	}
	if gr.state != Capturing {
		return 0, fmt.Errorf("capture into %s: %w", gr.id(), ErrNotCapturing)
	}
	idx, err := safecast.Conv[uint32](len(gr.commands))
	if err != nil {
		return 0, fmt.Errorf("capture into %s: %w", gr.id(), err)
	}
	gr.commands = append(gr.commands, cmd)
	return idx, nil
}

// ForkTo creates a child graph of g that captures from cmdList.
//
// The fork is anchored at the last command of g that signalled forkEvent,
// or at the last command of g when none did. A command list can carry only
// one unjoined fork of g at a time.
func (s *Store) ForkTo(g GraphID, cmdList zeapi.CommandListHandle, forkEvent zeapi.EventHandle) (GraphID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gr, err := s.get(g)
	if err != nil {
		return NoGraph, err
	}
	if gr.state != Capturing {
		return NoGraph, fmt.Errorf("fork from %s: %w", gr.id(), ErrNotCapturing)
	}
	if len(gr.commands) == 0 {
		return NoGraph, fmt.Errorf("fork from %s: %w", gr.id(), ErrNoForkCommand)
	}
	for i := range gr.forks {
		if gr.forks[i].CommandList == cmdList && !gr.forks[i].Joined {
			return NoGraph, fmt.Errorf("fork from %s onto list %d: %w", gr.id(), cmdList, ErrDuplicateFork)
		}
	}

	anchor := len(gr.commands) - 1
	if forkEvent != 0 {
		for i := len(gr.commands) - 1; i >= 0; i-- {
			if gr.commands[i].Signal == forkEvent {
				anchor = i
				break
			}
		}
	}
	forkCmd, err := safecast.Conv[uint32](anchor)
	if err != nil {
		return NoGraph, err
	}
	sibling, err := safecast.Conv[uint32](len(gr.forks))
	if err != nil {
		return NoGraph, err
	}

	child := &graph{
		parent:  g,
		root:    gr.root,
		level:   gr.level + 1,
		sibling: sibling,
		state:   Capturing,
		target:  cmdList,
	}
	id, err := s.add(child)
	if err != nil {
		return NoGraph, err
	}
	gr.forks = append(gr.forks, Fork{
		Child:       id,
		CommandList: cmdList,
		ForkEvent:   forkEvent,
		ForkCommand: forkCmd,
	})
	return id, nil
}

// TryJoinOnNextCommand joins the unjoined fork of g that captures from
// cmdList. It must be called before the parent's next command is captured:
// that command becomes the join point. The child and its open subgraphs stop
// capturing. It reports false when g is not capturing or has no unjoined
// fork on cmdList.
func (s *Store) TryJoinOnNextCommand(g GraphID, cmdList zeapi.CommandListHandle, joinEvent zeapi.EventHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	gr, err := s.get(g)
	if err != nil {
		return false
	}
	joinCmd, err := safecast.Conv[uint32](len(gr.commands))
	if err != nil {
		return false
	}
	return s.join(gr, cmdList, joinEvent, joinCmd)
}

// TryJoinAt is TryJoinOnNextCommand for a join point that is already
// captured: joinCmd must index a command of g that lies after the fork.
func (s *Store) TryJoinAt(g GraphID, cmdList zeapi.CommandListHandle, joinEvent zeapi.EventHandle, joinCmd uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	gr, err := s.get(g)
	if err != nil || int(joinCmd) >= len(gr.commands) {
		return false
	}
	return s.join(gr, cmdList, joinEvent, joinCmd)
}

func (s *Store) join(gr *graph, cmdList zeapi.CommandListHandle, joinEvent zeapi.EventHandle, joinCmd uint32) bool {
	if gr.state != Capturing {
		return false
	}
	for i := range gr.forks {
		f := &gr.forks[i]
		if f.CommandList != cmdList || f.Joined {
			continue
		}
		if joinCmd <= f.ForkCommand {
			return false
		}
		f.Joined = true
		f.JoinCommand = joinCmd
		f.JoinEvent = joinEvent
		s.stop(f.Child)
		return true
	}
	return false
}

// StopCapturing stops g and, first, every subgraph still capturing.
func (s *Store) StopCapturing(g GraphID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(g); err != nil {
		return err
	}
	s.stop(g)
	return nil
}

func (s *Store) stop(g GraphID) {
	gr := s.graphs[g]
	for _, f := range gr.forks {
		s.stop(f.Child)
	}
	gr.state = Stopped
}

// Release drops the tree rooted at root. Any later use of its graphs fails
// with ErrReleased.
func (s *Store) Release(root GraphID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gr, err := s.get(root)
	if err != nil {
		return err
	}
	if gr.parent != NoGraph {
		return fmt.Errorf("release %s: %w", gr.id(), ErrNotRoot)
	}
	s.release(root)
	return nil
}

func (s *Store) release(g GraphID) {
	gr := s.graphs[g]
	for _, f := range gr.forks {
		s.release(f.Child)
	}
	gr.released = true
	gr.commands = nil
	gr.forks = nil
}

// State returns the capture state of g.
func (s *Store) State(g GraphID) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return NotCapturing, err
	}
	return gr.state, nil
}

// Capturing reports whether g exists and is capturing.
func (s *Store) Capturing(g GraphID) bool {
	st, err := s.State(g)
	return err == nil && st == Capturing
}

// Commands returns a copy of the commands captured into g.
func (s *Store) Commands(g GraphID) []Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return nil
	}
	out := make([]Command, len(gr.commands))
	copy(out, gr.commands)
	return out
}

// Subgraphs returns the children of g in fork order.
func (s *Store) Subgraphs(g GraphID) []GraphID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return nil
	}
	out := make([]GraphID, len(gr.forks))
	for i, f := range gr.forks {
		out[i] = f.Child
	}
	return out
}

// Forks returns every fork of g in fork order.
func (s *Store) Forks(g GraphID) []Fork {
	return s.forks(g, func(Fork) bool { return true })
}

func (s *Store) JoinedForks(g GraphID) []Fork {
	return s.forks(g, func(f Fork) bool { return f.Joined })
}

func (s *Store) UnjoinedForks(g GraphID) []Fork {
	return s.forks(g, func(f Fork) bool { return !f.Joined })
}

func (s *Store) forks(g GraphID, keep func(Fork) bool) []Fork {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return nil
	}
	var out []Fork
	for _, f := range gr.forks {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// Parent returns the graph g was forked from, or NoGraph for a root.
func (s *Store) Parent(g GraphID) GraphID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return NoGraph
	}
	return gr.parent
}

// Root returns the root of the tree containing g.
func (s *Store) Root(g GraphID) GraphID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return NoGraph
	}
	return gr.root
}

// Target returns the command list g captures from.
func (s *Store) Target(g GraphID) zeapi.CommandListHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return 0
	}
	return gr.target
}

// Level is the nesting depth of g; a root is level 0.
func (s *Store) Level(g GraphID) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return 0
	}
	return gr.level
}

// Sibling is the position of g among the subgraphs of its parent.
func (s *Store) Sibling(g GraphID) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return 0
	}
	return gr.sibling
}

// ValidForInstantiation reports whether g and all of its subgraphs have
// stopped capturing with every fork joined.
func (s *Store) ValidForInstantiation(g GraphID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.get(g); err != nil {
		return false
	}
	return s.valid(g)
}

func (s *Store) valid(g GraphID) bool {
	gr := s.graphs[g]
	if gr.state != Stopped {
		return false
	}
	for _, f := range gr.forks {
		if !f.Joined || !s.valid(f.Child) {
			return false
		}
	}
	return true
}

// SubgraphID formats the identifier of g as L{level}_S{sibling}.
func (s *Store) SubgraphID(g GraphID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gr, err := s.get(g)
	if err != nil {
		return ""
	}
	return gr.id()
}

// NodeID formats the identifier of command cmd of g.
func (s *Store) NodeID(g GraphID, cmd uint32) string {
	return NodeID(s.Level(g), s.Sibling(g), cmd)
}

func (gr *graph) id() string {
	return SubgraphID(gr.level, gr.sibling)
}

func SubgraphID(level, sibling uint32) string {
	return fmt.Sprintf("L%d_S%d", level, sibling)
}

func NodeID(level, sibling, cmd uint32) string {
	return fmt.Sprintf("L%d_S%d_C%d", level, sibling, cmd)
}
