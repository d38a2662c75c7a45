package scenario

import (
	"context"
	"strings"
	"testing"

	"zetrace/internal/driver"
	"zetrace/internal/export"
	"zetrace/internal/testkit"
	"zetrace/internal/tracer"
)

func replayFile(t *testing.T, path string) (*driver.Driver, *Result) {
	t.Helper()
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	drv := driver.New(driver.Options{})
	tc := tracer.NewContext(tracer.Options{Enabled: true})
	defer tc.Close()
	th := tc.NewThread()
	defer th.Close()

	res, err := Replay(tracer.WithThread(context.Background(), th), tracer.Wrap(drv.DDI()), s)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	return drv, res
}

func TestReplay_ForkJoin(t *testing.T) {
	drv, res := replayFile(t, "testdata/fork_join.toml")
	if len(res.Events) != 2 || len(res.Lists) != 2 {
		t.Fatalf("objects: %d events, %d lists", len(res.Events), len(res.Lists))
	}
	root, ok := drv.Graph(res.Graph)
	if !ok {
		t.Fatalf("graph handle unknown")
	}
	out, err := export.DotExporter{}.ExportGraph(drv.Recorder().Store(), root)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	snap, err := drv.Recorder().Store().Snapshot(root)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := testkit.CheckGraphInvariants(snap.Graph); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	for _, want := range []string{"L0_S0_C0 -> L1_S0_C0;", "L1_S0_C1 -> L0_S0_C1;", "cluster_L1_S0"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}

func TestReplay_Unjoined(t *testing.T) {
	drv, res := replayFile(t, "testdata/unjoined.toml")
	root, _ := drv.Graph(res.Graph)
	store := drv.Recorder().Store()
	if len(store.UnjoinedForks(root)) != 1 || store.ValidForInstantiation(root) {
		t.Fatalf("expected one unjoined fork")
	}
	snap, err := store.Snapshot(root)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := testkit.CheckGraphInvariants(snap.Graph); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name, body, want string
	}{
		{"no capture", "[[list]]\nname = \"a\"\n", "missing capture"},
		{"undeclared capture", "capture = \"x\"\n[[list]]\nname = \"a\"\n", "not declared"},
		{"unknown list", "capture = \"a\"\n[[list]]\nname = \"a\"\n[[command]]\nlist = \"b\"\nkind = \"barrier\"\n", "unknown list"},
		{"bad kind", "capture = \"a\"\n[[list]]\nname = \"a\"\n[[command]]\nlist = \"a\"\nkind = \"image-copy\"\n", "unsupported kind"},
		{"wait without events", "capture = \"a\"\n[[list]]\nname = \"a\"\n[[command]]\nlist = \"a\"\nkind = \"wait\"\n", "at least one"},
		{"duplicate list", "capture = \"a\"\n[[list]]\nname = \"a\"\n[[list]]\nname = \" a\"\n", "declared twice"},
		{"unknown key", "capture = \"a\"\ncolour = 1\n[[list]]\nname = \"a\"\n", "unknown key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
		})
	}
}
