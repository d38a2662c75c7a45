package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zetrace/internal/capture"
	"zetrace/internal/zeapi"
)

const (
	mainList zeapi.CommandListHandle = 1
	sideList zeapi.CommandListHandle = 2

	e1 zeapi.EventHandle = 1
	e2 zeapi.EventHandle = 2
)

func record(t *testing.T, r *capture.Recorder, cl zeapi.CommandListHandle, cmd capture.Command) {
	t.Helper()
	if _, _, err := r.Record(cl, cmd); err != nil {
		t.Fatalf("record: %v", err)
	}
}

// joinedCapture builds: root barrier signals E1, side list forks on E1 with a
// copy and a barrier signalling E2, root waits on E2.
func joinedCapture(t *testing.T) (*capture.Store, capture.GraphID) {
	t.Helper()
	r := capture.NewRecorder(nil, nil)
	root, err := r.Begin(mainList)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	record(t, r, mainList, capture.Command{Kind: capture.KindBarrier, Signal: e1})
	record(t, r, sideList, capture.Command{Kind: capture.KindMemoryCopy, Waits: []zeapi.EventHandle{e1}})
	record(t, r, sideList, capture.Command{Kind: capture.KindBarrier, Signal: e2})
	record(t, r, mainList, capture.Command{Kind: capture.KindBarrier, Waits: []zeapi.EventHandle{e2}})
	if _, err := r.End(mainList); err != nil {
		t.Fatalf("end: %v", err)
	}
	return r.Store(), root
}

func exportGraph(t *testing.T, s *capture.Store, g capture.GraphID) string {
	t.Helper()
	out, err := DotExporter{}.ExportGraph(s, g)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	return out
}

func requireContains(t *testing.T, out string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(out, p) {
			t.Errorf("output missing %q\n%s", p, out)
		}
	}
}

func TestExport_JoinedFork(t *testing.T) {
	s, root := joinedCapture(t)
	out := exportGraph(t, s, root)

	requireContains(t, out,
		"digraph \"graph\" {\n  rankdir=TB;\n  nodesep=1;\n  ranksep=1;\n  node [shape=box, style=filled];\n  edge [color=black];\n\n",
		"  L0_S0_C0 [label=\"zeCommandListAppendBarrier\", fillcolor=orange];\n",
		"  L0_S0_C0 -> L0_S0_C1;\n",
		"  L0_S0_C0 -> L1_S0_C0;\n",
		"  L1_S0_C1 -> L0_S0_C1;\n",
		"  subgraph cluster_L1_S0 {\n",
		"    label=\"Subgraph 1-0\";\n",
		"    fillcolor=grey90;\n",
		"    L1_S0_C0 [label=\"zeCommandListAppendMemoryCopy\", fillcolor=lightblue];\n",
		"    L1_S0_C0 -> L1_S0_C1;\n",
	)
	if strings.Contains(out, "unjoined fork\"") {
		t.Fatalf("joined capture must not report unjoined forks\n%s", out)
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Fatalf("output not closed")
	}
}

func TestExport_UnjoinedFork(t *testing.T) {
	r := capture.NewRecorder(nil, nil)
	root, _ := r.Begin(mainList)
	record(t, r, mainList, capture.Command{Kind: capture.KindSignalEvent, Signal: e1})
	record(t, r, sideList, capture.Command{Kind: capture.KindMemoryFill, Waits: []zeapi.EventHandle{e1}})
	record(t, r, mainList, capture.Command{Kind: capture.KindWriteGlobalTimestamp})
	r.End(mainList)

	out := exportGraph(t, r.Store(), root)
	requireContains(t, out,
		"  // Unjoined forks:\n  L0_S0_C0 -> L1_S0_C0 [color=red, label=\"unjoined fork\"];\n",
		"fillcolor=yellow",
		"fillcolor=pink",
	)
	joinSection := out[strings.Index(out, "// Fork/Join edges:"):strings.Index(out, "// Unjoined forks:")]
	if strings.Contains(joinSection, "->") {
		t.Fatalf("unjoined fork must not draw fork/join edges: %q", joinSection)
	}
}

func TestExport_EmptySubgraphHasNoEdges(t *testing.T) {
	s := capture.NewStore()
	root, _ := s.NewGraph(mainList, true)
	s.Capture(root, capture.Command{Kind: capture.KindBarrier, Signal: e1})
	if _, err := s.ForkTo(root, sideList, e1); err != nil {
		t.Fatalf("fork: %v", err)
	}
	s.StopCapturing(root)

	out := exportGraph(t, s, root)
	if strings.Contains(out, "L1_S0_C0") {
		t.Fatalf("empty subgraph should draw no nodes or edges\n%s", out)
	}
	requireContains(t, out, "subgraph cluster_L1_S0 {")
}

func TestExport_ArgumentTableLabel(t *testing.T) {
	s := capture.NewStore()
	root, _ := s.NewGraph(mainList, true)
	s.Capture(root, capture.Command{
		Kind: capture.KindLaunchKernel,
		Args: []capture.Arg{{Name: "kernel", Value: "saxpy<float>"}},
	})
	out := exportGraph(t, s, root)
	requireContains(t, out,
		"<TR><TD COLSPAN=\"2\"><B>zeCommandListAppendLaunchKernel</B></TD></TR>",
		"saxpy&lt;float&gt;",
		"</TABLE>>, shape=plain, fillcolor=aliceblue];",
	)
}

func TestSubgraphFillColor_Saturates(t *testing.T) {
	cases := []struct {
		level uint32
		want  string
	}{
		{1, "grey90"},
		{2, "grey80"},
		{3, "grey70"},
		{4, "grey60"},
		{5, "grey50"},
		{6, "grey50"},
		{10, "grey50"},
		{100, "grey50"},
	}
	for _, tc := range cases {
		if got := SubgraphFillColor(tc.level); got != tc.want {
			t.Errorf("level %d: %s, want %s", tc.level, got, tc.want)
		}
	}
}

func TestExport_NestedClustersAndFile(t *testing.T) {
	s := capture.NewStore()
	root, _ := s.NewGraph(mainList, true)
	g := root
	for depth := 0; depth < 6; depth++ {
		ev := zeapi.EventHandle(100 + depth)
		if _, err := s.Capture(g, capture.Command{Kind: capture.KindBarrier, Signal: ev}); err != nil {
			t.Fatalf("capture: %v", err)
		}
		child, err := s.ForkTo(g, zeapi.CommandListHandle(10+depth), ev)
		if err != nil {
			t.Fatalf("fork: %v", err)
		}
		g = child
	}
	s.Capture(g, capture.Command{Kind: capture.KindMemoryCopy})
	s.StopCapturing(root)

	snap, err := s.Snapshot(root)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	path := filepath.Join(t.TempDir(), "out", "graph.dot")
	if err := (DotExporter{}).ExportToFile(path, snap.Graph); err != nil {
		t.Fatalf("export to file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(data)
	requireContains(t, out,
		"subgraph cluster_L6_S0 {",
		"label=\"Subgraph 6-0\";",
		strings.Repeat(" ", 14)+"L6_S0_C0 [label=",
	)
	if strings.Count(out, "fillcolor=grey50;") != 2 {
		t.Fatalf("levels 5 and 6 should both use grey50\n%s", out)
	}
}
