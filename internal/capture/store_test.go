package capture

import (
	"errors"
	"testing"

	"zetrace/internal/zeapi"
)

const (
	mainList  zeapi.CommandListHandle = 1
	sideList  zeapi.CommandListHandle = 2
	thirdList zeapi.CommandListHandle = 3

	evFork zeapi.EventHandle = 10
	evJoin zeapi.EventHandle = 11
)

func mustCapture(t *testing.T, s *Store, g GraphID, cmd Command) uint32 {
	t.Helper()
	idx, err := s.Capture(g, cmd)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	return idx
}

func TestStore_CaptureRequiresCapturingState(t *testing.T) {
	s := NewStore()
	g, err := s.NewGraph(mainList, false)
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	if _, err := s.Capture(g, Command{Kind: KindBarrier}); !errors.Is(err, ErrNotCapturing) {
		t.Fatalf("expected ErrNotCapturing, got %v", err)
	}
	if err := s.StartCapturing(g); err != nil {
		t.Fatalf("start: %v", err)
	}
	if idx := mustCapture(t, s, g, Command{Kind: KindBarrier}); idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
	if err := s.StartCapturing(g); err == nil {
		t.Fatalf("second start should fail")
	}
}

func TestStore_ForkJoinIndices(t *testing.T) {
	s := NewStore()
	root, _ := s.NewGraph(mainList, true)
	mustCapture(t, s, root, Command{Kind: KindBarrier, Signal: evFork})
	mustCapture(t, s, root, Command{Kind: KindMemoryCopy})

	child, err := s.ForkTo(root, sideList, evFork)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	if s.Level(child) != 1 || s.Sibling(child) != 0 {
		t.Fatalf("child at L%d_S%d", s.Level(child), s.Sibling(child))
	}
	forks := s.Forks(root)
	if len(forks) != 1 || forks[0].ForkCommand != 0 {
		t.Fatalf("fork should anchor at the signalling command: %+v", forks)
	}

	mustCapture(t, s, child, Command{Kind: KindMemoryCopy})
	if !s.TryJoinOnNextCommand(root, sideList, evJoin) {
		t.Fatalf("join should succeed")
	}
	mustCapture(t, s, root, Command{Kind: KindBarrier, Waits: []zeapi.EventHandle{evJoin}})

	joined := s.JoinedForks(root)
	if len(joined) != 1 || joined[0].JoinCommand != 2 {
		t.Fatalf("join should record the next command index: %+v", joined)
	}
	if st, _ := s.State(child); st != Stopped {
		t.Fatalf("joined child should be stopped, got %s", st)
	}
	if s.TryJoinOnNextCommand(root, sideList, evJoin) {
		t.Fatalf("second join of the same fork must fail")
	}
}

func TestStore_TryJoinAtCapturedCommand(t *testing.T) {
	s := NewStore()
	root, _ := s.NewGraph(mainList, true)
	mustCapture(t, s, root, Command{Kind: KindBarrier, Signal: evFork})
	child, err := s.ForkTo(root, sideList, evFork)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}

	if s.TryJoinAt(root, sideList, evJoin, 0) {
		t.Fatalf("join at the fork command must fail")
	}
	if s.TryJoinAt(root, sideList, evJoin, 1) {
		t.Fatalf("join past the last command must fail")
	}
	idx := mustCapture(t, s, root, Command{Kind: KindBarrier, Waits: []zeapi.EventHandle{evJoin}})
	if !s.TryJoinAt(root, sideList, evJoin, idx) {
		t.Fatalf("join at the captured command should succeed")
	}
	joined := s.JoinedForks(root)
	if len(joined) != 1 || joined[0].JoinCommand != idx {
		t.Fatalf("join command = %+v, want %d", joined, idx)
	}
	if st, _ := s.State(child); st != Stopped {
		t.Fatalf("joined child should be stopped, got %s", st)
	}
}

func TestStore_JoinUnknownListIsNoop(t *testing.T) {
	s := NewStore()
	root, _ := s.NewGraph(mainList, true)
	mustCapture(t, s, root, Command{Kind: KindBarrier})
	if s.TryJoinOnNextCommand(root, thirdList, evJoin) {
		t.Fatalf("join of an unknown list should report false")
	}
	if len(s.Forks(root)) != 0 {
		t.Fatalf("no forks expected")
	}
}

func TestStore_DuplicateForkRejected(t *testing.T) {
	s := NewStore()
	root, _ := s.NewGraph(mainList, true)
	if _, err := s.ForkTo(root, sideList, evFork); !errors.Is(err, ErrNoForkCommand) {
		t.Fatalf("fork from an empty graph: got %v", err)
	}
	mustCapture(t, s, root, Command{Kind: KindBarrier, Signal: evFork})
	if _, err := s.ForkTo(root, sideList, evFork); err != nil {
		t.Fatalf("fork: %v", err)
	}
	if _, err := s.ForkTo(root, sideList, evFork); !errors.Is(err, ErrDuplicateFork) {
		t.Fatalf("expected ErrDuplicateFork, got %v", err)
	}
	second, err := s.ForkTo(root, thirdList, evFork)
	if err != nil {
		t.Fatalf("adjacent fork: %v", err)
	}
	if s.Sibling(second) != 1 {
		t.Fatalf("adjacent fork should be sibling 1, got %d", s.Sibling(second))
	}
}

func TestStore_StopCapturingIsRecursive(t *testing.T) {
	s := NewStore()
	root, _ := s.NewGraph(mainList, true)
	mustCapture(t, s, root, Command{Kind: KindBarrier, Signal: evFork})
	child, _ := s.ForkTo(root, sideList, evFork)
	mustCapture(t, s, child, Command{Kind: KindBarrier, Signal: evJoin})
	grandchild, err := s.ForkTo(child, thirdList, evJoin)
	if err != nil {
		t.Fatalf("nested fork: %v", err)
	}
	if s.Level(grandchild) != 2 {
		t.Fatalf("grandchild level %d", s.Level(grandchild))
	}

	if err := s.StopCapturing(root); err != nil {
		t.Fatalf("stop: %v", err)
	}
	for _, g := range []GraphID{root, child, grandchild} {
		if s.Capturing(g) {
			t.Fatalf("%s still capturing", s.SubgraphID(g))
		}
	}
	if s.ValidForInstantiation(root) {
		t.Fatalf("tree with unjoined forks must not be valid for instantiation")
	}
}

func TestStore_ValidForInstantiation(t *testing.T) {
	s := NewStore()
	root, _ := s.NewGraph(mainList, true)
	mustCapture(t, s, root, Command{Kind: KindBarrier, Signal: evFork})
	child, _ := s.ForkTo(root, sideList, evFork)
	mustCapture(t, s, child, Command{Kind: KindMemoryFill, Signal: evJoin})

	if s.ValidForInstantiation(root) {
		t.Fatalf("capturing graph must not be valid")
	}
	s.TryJoinOnNextCommand(root, sideList, evJoin)
	mustCapture(t, s, root, Command{Kind: KindWaitOnEvents, Waits: []zeapi.EventHandle{evJoin}})
	_ = s.StopCapturing(root)
	if !s.ValidForInstantiation(root) {
		t.Fatalf("stopped tree with joined forks should be valid")
	}
}

func TestStore_ReleaseInvalidatesTree(t *testing.T) {
	s := NewStore()
	root, _ := s.NewGraph(mainList, true)
	mustCapture(t, s, root, Command{Kind: KindBarrier, Signal: evFork})
	child, _ := s.ForkTo(root, sideList, evFork)

	if err := s.Release(child); !errors.Is(err, ErrNotRoot) {
		t.Fatalf("releasing a subgraph: got %v", err)
	}
	if err := s.Release(root); err != nil {
		t.Fatalf("release: %v", err)
	}
	if s.TryJoinOnNextCommand(root, sideList, evJoin) {
		t.Fatalf("join after release must fail")
	}
	if _, err := s.Capture(child, Command{}); !errors.Is(err, ErrReleased) {
		t.Fatalf("capture into released child: got %v", err)
	}
	if err := s.Release(root); !errors.Is(err, ErrReleased) {
		t.Fatalf("double release: got %v", err)
	}
}

func TestIdentifiers(t *testing.T) {
	if got := NodeID(1, 0, 1); got != "L1_S0_C1" {
		t.Fatalf("NodeID = %q", got)
	}
	if got := SubgraphID(2, 3); got != "L2_S3" {
		t.Fatalf("SubgraphID = %q", got)
	}
}

func TestKindClass(t *testing.T) {
	cases := []struct {
		kind  Kind
		class Class
	}{
		{KindMemoryCopy, ClassCopy},
		{KindMemoryFill, ClassCopy},
		{KindBarrier, ClassBarrier},
		{KindSignalEvent, ClassSync},
		{KindWaitOnEvents, ClassSync},
		{KindEventReset, ClassSync},
		{KindImageCopyRegion, ClassImage},
		{KindWriteGlobalTimestamp, ClassTimestamp},
		{KindLaunchKernel, ClassOther},
	}
	for _, tc := range cases {
		if got := tc.kind.Class(); got != tc.class {
			t.Errorf("%s: class %s, want %s", tc.kind.Label(), got, tc.class)
		}
	}
	if k, ok := ParseKind("zeCommandListAppendBarrier"); !ok || k != KindBarrier {
		t.Fatalf("ParseKind full name: %v %v", k, ok)
	}
	if k, ok := ParseKind("copy"); !ok || k != KindMemoryCopy {
		t.Fatalf("ParseKind short name: %v %v", k, ok)
	}
	if Kind(200).Label() != "Unknown" {
		t.Fatalf("out of range kind should be Unknown")
	}
}
