package art

import (
	"bytes"
	"fmt"
	"strings"
)

// dumper renders an ASCII tree for debugging, generalizing the teacher's
// dump.go (which only implemented the Node4 case) to all four node kinds
// via the shared begin/next traversal instead of a per-kind index dump.
type dumper struct {
	buf         *bytes.Buffer
	nChildStack []int
}

// Dump renders the tree rooted at root as a human-readable string.
func Dump(root *header) string {
	d := &dumper{buf: bytes.NewBufferString("")}
	if root == nil {
		return "(empty)\n"
	}
	d.dumpNode(root)
	return d.buf.String()
}

func (t *Tree) Dump() string { return Dump(t.root.Load()) }

func (d *dumper) padding() (string, string) {
	depth := len(d.nChildStack)
	if depth == 0 {
		return "───", "   "
	}
	pad := "    " + strings.Repeat("│  ", depth-1)
	left := d.nChildStack[len(d.nChildStack)-1]
	head, finalPad := "├──", "│  "
	if left == 1 {
		head, finalPad = "└──", "   "
	}
	return pad + head, pad + finalPad
}

func (d *dumper) pushNChildren(n int) { d.nChildStack = append(d.nChildStack, n) }
func (d *dumper) decNChildren() {
	if len(d.nChildStack) > 0 {
		d.nChildStack[len(d.nChildStack)-1]--
	}
}
func (d *dumper) popNChildren() {
	if depth := len(d.nChildStack); depth > 0 {
		d.nChildStack = d.nChildStack[:depth-1]
	}
}

func kindName(k kind) string {
	switch k {
	case kindNode4:
		return "Node4"
	case kindNode16:
		return "Node16"
	case kindNode48:
		return "Node48"
	case kindNode256:
		return "Node256"
	default:
		return "Leaf"
	}
}

func (d *dumper) dumpNode(n *header) {
	headerPad, pad := d.padding()

	if n.kind == kindLeaf {
		lf := n.asLeaf()
		fmt.Fprintf(d.buf, "%s Leaf (%p)\n", headerPad, lf)
		fmt.Fprintf(d.buf, "%s key: %q\n", pad, lf.key)
		fmt.Fprintf(d.buf, "%s val: %q\n", pad, lf.value)
		return
	}

	fmt.Fprintf(d.buf, "%s %s (%p)\n", headerPad, kindName(n.kind), n)
	fmt.Fprintf(d.buf, "%s prefix:   %q\n", pad, n.pfx.slice())
	fmt.Fprintf(d.buf, "%s children: %d\n", pad, n.childCount())

	d.pushNChildren(n.childCount())
	child, keyByte, ok := n.begin()
	for ok {
		d.dumpNode(child)
		d.decNChildren()
		child, keyByte, ok = n.next(keyByte)
	}
	d.popNChildren()
}
