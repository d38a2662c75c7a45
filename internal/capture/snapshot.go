package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"zetrace/internal/zeapi"
)

// SnapshotSchema is bumped whenever the encoded layout changes.
const SnapshotSchema uint16 = 1

var ErrSchema = errors.New("snapshot schema mismatch")

// Snapshot is a detached copy of a capture tree.
type Snapshot struct {
	Schema uint16
	Graph  *View
}

// View is the plain-data form of one graph and its subgraphs.
type View struct {
	Level     uint32
	Sibling   uint32
	Target    zeapi.CommandListHandle
	State     State
	Commands  []Command
	Subgraphs []SubgraphView
}

// SubgraphView pairs a fork with the child graph it created.
type SubgraphView struct {
	Fork  Fork
	Graph *View
}

// Snapshot copies the tree rooted at g.
func (s *Store) Snapshot(g GraphID) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.get(g); err != nil {
		return nil, err
	}
	return &Snapshot{Schema: SnapshotSchema, Graph: s.view(g)}, nil
}

func (s *Store) view(g GraphID) *View {
	gr := s.graphs[g]
	v := &View{
		Level:    gr.level,
		Sibling:  gr.sibling,
		Target:   gr.target,
		State:    gr.state,
		Commands: make([]Command, len(gr.commands)),
	}
	copy(v.Commands, gr.commands)
	for _, f := range gr.forks {
		v.Subgraphs = append(v.Subgraphs, SubgraphView{Fork: f, Graph: s.view(f.Child)})
	}
	return v
}

// ValidForInstantiation mirrors Store.ValidForInstantiation for a detached tree.
func (v *View) ValidForInstantiation() bool {
	if v == nil || v.State != Stopped {
		return false
	}
	for _, sub := range v.Subgraphs {
		if !sub.Fork.Joined || !sub.Graph.ValidForInstantiation() {
			return false
		}
	}
	return true
}

// Count returns the number of graphs and commands in the tree.
func (v *View) Count() (graphs, commands int) {
	if v == nil {
		return 0, 0
	}
	graphs, commands = 1, len(v.Commands)
	for _, sub := range v.Subgraphs {
		g, c := sub.Graph.Count()
		graphs += g
		commands += c
	}
	return graphs, commands
}

func (snap *Snapshot) Encode(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(snap)
}

// DecodeSnapshot reads a snapshot and rejects other schema versions.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Schema != SnapshotSchema {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchema, snap.Schema, SnapshotSchema)
	}
	if snap.Graph == nil {
		return nil, errors.New("snapshot has no graph")
	}
	return &snap, nil
}

// Save writes the snapshot to path through a temp file and rename.
func (snap *Snapshot) Save(path string) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if err = snap.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	snap, err := DecodeSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return snap, nil
}
