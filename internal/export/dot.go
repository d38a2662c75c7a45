// Package export renders capture graphs as Graphviz DOT.
package export

import (
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/safecast"

	"zetrace/internal/capture"
)

// DotExporter writes a capture tree as a DOT digraph. Commands become boxes
// filled by command class, subgraphs become nested clusters shaded by depth.
type DotExporter struct{}

var subgraphFills = []string{
	"grey90", // level 1
	"grey80",
	"grey70",
	"grey60",
	"grey50", // level 5 and deeper
}

// SubgraphFillColor returns the cluster fill for a subgraph at level.
func SubgraphFillColor(level uint32) string {
	if level == 0 {
		level = 1
	}
	idx := int(min(level, uint32(len(subgraphFills)))) - 1
	return subgraphFills[idx]
}

// NodeFillColor returns the node fill for a command kind.
func NodeFillColor(k capture.Kind) string {
	switch k.Class() {
	case capture.ClassCopy:
		return "lightblue"
	case capture.ClassBarrier:
		return "orange"
	case capture.ClassSync:
		return "yellow"
	case capture.ClassImage:
		return "lightgreen"
	case capture.ClassTimestamp:
		return "pink"
	}
	return "aliceblue"
}

// ExportToString renders the tree rooted at v.
func (e DotExporter) ExportToString(v *capture.View) string {
	var sb strings.Builder
	e.write(&sb, v)
	return sb.String()
}

// WriteTo renders the tree rooted at v to w.
func (e DotExporter) WriteTo(w io.Writer, v *capture.View) error {
	_, err := io.WriteString(w, e.ExportToString(v))
	return err
}

// ExportToFile renders the tree rooted at v into path.
func (e DotExporter) ExportToFile(path string, v *capture.View) error {
	if path == "" {
		return errors.New("export: empty output path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(e.ExportToString(v)), 0o644); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// ExportGraph snapshots g from store and renders it.
func (e DotExporter) ExportGraph(store *capture.Store, g capture.GraphID) (string, error) {
	snap, err := store.Snapshot(g)
	if err != nil {
		return "", err
	}
	return e.ExportToString(snap.Graph), nil
}

func (e DotExporter) write(sb *strings.Builder, v *capture.View) {
	sb.WriteString("digraph \"graph\" {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  nodesep=1;\n")
	sb.WriteString("  ranksep=1;\n")
	sb.WriteString("  node [shape=box, style=filled];\n")
	sb.WriteString("  edge [color=black];\n\n")

	if v != nil {
		writeNodes(sb, v, 0, 0)
		writeEdges(sb, v, 0, 0)
		writeSubgraphs(sb, v, 0)
	}
	sb.WriteString("}\n")
}

func indentFor(level uint32) string {
	return strings.Repeat(" ", int(level+1)*2)
}

func index(i int) uint32 {
	u, err := safecast.Conv[uint32](i)
	if err != nil {
		panic(fmt.Errorf("command index overflow: %w", err))
	}
	return u
}

func writeNodes(sb *strings.Builder, v *capture.View, level, sibling uint32) {
	indent := indentFor(level)
	sb.WriteString(indent + "// Command nodes:\n")
	for i := range v.Commands {
		cmd := &v.Commands[i]
		fmt.Fprintf(sb, "%s%s [label=%s, fillcolor=%s];\n",
			indent, capture.NodeID(level, sibling, index(i)), nodeLabel(cmd, indent), NodeFillColor(cmd.Kind))
	}
	sb.WriteString("\n")
}

func nodeLabel(cmd *capture.Command, indent string) string {
	if len(cmd.Args) == 0 {
		return "\"" + cmd.Kind.Label() + "\""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(indent + "<<TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">\n")
	fmt.Fprintf(&sb, "%s  <TR><TD COLSPAN=\"2\"><B>%s</B></TD></TR>\n", indent, cmd.Kind.Label())
	for _, a := range cmd.Args {
		fmt.Fprintf(&sb, "%s  <TR><TD ALIGN=\"LEFT\" BGCOLOR=\"azure\">%s</TD>"+
			"<TD ALIGN=\"LEFT\" BGCOLOR=\"white\"><FONT FACE=\"monospace\">%s</FONT></TD></TR>\n",
			indent, html.EscapeString(a.Name), html.EscapeString(a.Value))
	}
	sb.WriteString(indent + "</TABLE>>, shape=plain")
	return sb.String()
}

func writeEdges(sb *strings.Builder, v *capture.View, level, sibling uint32) {
	indent := indentFor(level)

	sb.WriteString(indent + "// Sequential edges:\n")
	for i := 1; i < len(v.Commands); i++ {
		fmt.Fprintf(sb, "%s%s -> %s;\n", indent,
			capture.NodeID(level, sibling, index(i-1)), capture.NodeID(level, sibling, index(i)))
	}

	sb.WriteString("\n" + indent + "// Fork/Join edges:\n")
	for i, sub := range v.Subgraphs {
		if !sub.Fork.Joined || sub.Graph == nil || len(sub.Graph.Commands) == 0 {
			continue
		}
		child := index(i)
		fmt.Fprintf(sb, "%s%s -> %s;\n", indent,
			capture.NodeID(level, sibling, sub.Fork.ForkCommand), capture.NodeID(level+1, child, 0))
		fmt.Fprintf(sb, "%s%s -> %s;\n", indent,
			capture.NodeID(level+1, child, index(len(sub.Graph.Commands)-1)), capture.NodeID(level, sibling, sub.Fork.JoinCommand))
	}

	sb.WriteString("\n" + indent + "// Unjoined forks:\n")
	for i, sub := range v.Subgraphs {
		if sub.Fork.Joined || sub.Graph == nil || len(sub.Graph.Commands) == 0 {
			continue
		}
		fmt.Fprintf(sb, "%s%s -> %s [color=red, label=\"unjoined fork\"];\n", indent,
			capture.NodeID(level, sibling, sub.Fork.ForkCommand), capture.NodeID(level+1, index(i), 0))
	}
	sb.WriteString("\n")
}

func writeSubgraphs(sb *strings.Builder, v *capture.View, level uint32) {
	if len(v.Subgraphs) == 0 {
		return
	}
	indent := indentFor(level)
	sb.WriteString(indent + "// Subgraphs:\n")

	for i, sub := range v.Subgraphs {
		if sub.Graph == nil {
			continue
		}
		sibling := index(i)
		fmt.Fprintf(sb, "%ssubgraph cluster_%s {\n", indent, capture.SubgraphID(level+1, sibling))
		fmt.Fprintf(sb, "%s  label=\"Subgraph %d-%d\";\n", indent, level+1, sibling)
		sb.WriteString(indent + "  style=filled;\n")
		fmt.Fprintf(sb, "%s  fillcolor=%s;\n\n", indent, SubgraphFillColor(level+1))

		writeNodes(sb, sub.Graph, level+1, sibling)
		writeEdges(sb, sub.Graph, level+1, sibling)
		writeSubgraphs(sb, sub.Graph, level+1)

		sb.WriteString(indent + "  }\n\n")
	}
}
