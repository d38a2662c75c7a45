package testkit

import (
	"strings"
	"testing"

	"zetrace/internal/capture"
)

func tree() *capture.View {
	return &capture.View{
		State:    capture.Stopped,
		Commands: make([]capture.Command, 3),
		Subgraphs: []capture.SubgraphView{{
			Fork: capture.Fork{ForkCommand: 0, Joined: true, JoinCommand: 2},
			Graph: &capture.View{
				Level:    1,
				State:    capture.Stopped,
				Commands: make([]capture.Command, 1),
			},
		}},
	}
}

func TestCheckGraphInvariants(t *testing.T) {
	if err := CheckGraphInvariants(tree()); err != nil {
		t.Fatalf("valid tree rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(v *capture.View)
		want   string
	}{
		{"level", func(v *capture.View) { v.Subgraphs[0].Graph.Level = 2 }, "level 2"},
		{"sibling", func(v *capture.View) { v.Subgraphs[0].Graph.Sibling = 1 }, "sibling 1"},
		{"fork beyond", func(v *capture.View) { v.Subgraphs[0].Fork.ForkCommand = 3 }, "fork command 3"},
		{"join before fork", func(v *capture.View) { v.Subgraphs[0].Fork.JoinCommand = 0 }, "not after fork"},
		{"join beyond", func(v *capture.View) { v.Subgraphs[0].Fork.JoinCommand = 4 }, "join command 4 beyond"},
		{"joined capturing", func(v *capture.View) { v.Subgraphs[0].Graph.State = capture.Capturing }, "still capturing"},
		{"nil child", func(v *capture.View) { v.Subgraphs[0].Graph = nil }, "nil subgraph"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := tree()
			tc.mutate(v)
			err := CheckGraphInvariants(v)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
		})
	}

	if err := CheckGraphInvariants(nil); err == nil {
		t.Fatalf("nil view accepted")
	}
}
