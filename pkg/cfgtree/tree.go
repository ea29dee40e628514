package cfgtree

import "strings"

// Node is a single configuration entry: a name with either a scalar
// value or a brace-delimited block of child entries.
type Node struct {
	Name     string
	Value    string
	Children []*Node
	Block    bool
	Line     int
	Column   int
}

// Find returns the last child entry with the given name, or nil.
// Later entries override earlier ones.
func (n *Node) Find(name string) *Node {
	return findLast(n.Children, name)
}

// Tree is a parsed configuration file.
type Tree struct {
	Children []*Node
}

// Empty reports whether the tree has no entries at all.
func (t *Tree) Empty() bool {
	return len(t.Children) == 0
}

// Find returns the last top-level entry with the given name, or nil.
// Later entries override earlier ones.
func (t *Tree) Find(name string) *Node {
	return findLast(t.Children, name)
}

// Value returns the scalar value of the named top-level entry. The
// second return is false when no such entry exists. A block entry
// yields an empty value.
func (t *Tree) Value(name string) (string, bool) {
	n := t.Find(name)
	if n == nil {
		return "", false
	}
	return n.Value, true
}

func findLast(nodes []*Node, name string) *Node {
	var match *Node
	for _, n := range nodes {
		if n.Name == name {
			match = n
		}
	}
	return match
}

// Format renders the tree back to configuration-file text.
func (t *Tree) Format() string {
	var b strings.Builder
	formatNodes(&b, t.Children, 0)
	return b.String()
}

func formatNodes(b *strings.Builder, nodes []*Node, indent int) {
	prefix := strings.Repeat("    ", indent)
	for _, n := range nodes {
		b.WriteString(prefix)
		b.WriteString(quoteIfNeeded(n.Name))
		if n.Block {
			b.WriteString(" {\n")
			formatNodes(b, n.Children, indent+1)
			b.WriteString(prefix)
			b.WriteString("}\n")
			continue
		}
		b.WriteString(" ")
		b.WriteString(quoteIfNeeded(n.Value))
		b.WriteString("\n")
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"{};#") {
		escaped := strings.ReplaceAll(s, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		escaped = strings.ReplaceAll(escaped, "\n", `\n`)
		return `"` + escaped + `"`
	}
	return s
}
