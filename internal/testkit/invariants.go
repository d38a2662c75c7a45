// Package testkit holds structural checks shared by package tests.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"zetrace/internal/capture"
)

// CheckGraphInvariants runs a minimal set of structural invariants on a
// capture tree:
// 1) every subgraph sits one level below its parent and carries its
// position among the parent's forks as sibling index
// 2) fork commands index existing parent commands
// 3) a joined fork joins after its fork point and at most one past the
// parent's last command
// 4) a stopped parent has no capturing children
func CheckGraphInvariants(v *capture.View) error {
	if v == nil {
		return fmt.Errorf("nil view")
	}
	return checkView(v, "root")
}

func checkView(v *capture.View, path string) error {
	n, err := safecast.Conv[uint32](len(v.Commands))
	if err != nil {
		return fmt.Errorf("%s: command count overflow: %w", path, err)
	}
	for i, sg := range v.Subgraphs {
		child := sg.Graph
		where := fmt.Sprintf("%s/%d", path, i)
		if child == nil {
			return fmt.Errorf("%s: nil subgraph", where)
		}
		sibling, err := safecast.Conv[uint32](i)
		if err != nil {
			return fmt.Errorf("%s: sibling overflow: %w", where, err)
		}
		// 1) placement
		if child.Level != v.Level+1 {
			return fmt.Errorf("%s: level %d under parent level %d", where, child.Level, v.Level)
		}
		if child.Sibling != sibling {
			return fmt.Errorf("%s: sibling %d, want %d", where, child.Sibling, sibling)
		}
		// 2) fork point
		if sg.Fork.ForkCommand >= n {
			return fmt.Errorf("%s: fork command %d beyond %d parent commands", where, sg.Fork.ForkCommand, n)
		}
		// 3) join point
		if sg.Fork.Joined {
			if sg.Fork.JoinCommand <= sg.Fork.ForkCommand {
				return fmt.Errorf("%s: join command %d not after fork command %d", where, sg.Fork.JoinCommand, sg.Fork.ForkCommand)
			}
			if sg.Fork.JoinCommand > n {
				return fmt.Errorf("%s: join command %d beyond %d parent commands", where, sg.Fork.JoinCommand, n)
			}
			if child.State == capture.Capturing {
				return fmt.Errorf("%s: joined subgraph still capturing", where)
			}
		}
		// 4) stop propagates
		if v.State == capture.Stopped && child.State == capture.Capturing {
			return fmt.Errorf("%s: capturing under a stopped parent", where)
		}
		if err := checkView(child, where); err != nil {
			return err
		}
	}
	return nil
}
