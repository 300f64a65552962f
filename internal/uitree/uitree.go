// Package uitree models one immutable UI tree snapshot and locates the
// elements a reply attempt needs. Snapshots are finite and acyclic: each
// parent owns its children for the snapshot's lifetime and the core never
// mutates them.
package uitree

import "strings"

// Node is one element of a snapshot. ID is assigned by the device shim and
// stays valid for the snapshot's lifetime.
type Node struct {
	ID          string
	Class       string
	Text        string
	ContentDesc string
	Children    []*Node
}

// A node qualifies as the send button by substring match on the localized
// labels or exact match on "Send".
var sendSubstrings = []string{"發送", "傳送"}

const sendExact = "Send"

// findFirst walks the snapshot depth-first in pre-order (node before its
// children, children left to right) with an explicit stack and returns the
// first node the predicate accepts.
func findFirst(root *Node, match func(*Node) bool) *Node {
	if root == nil {
		return nil
	}
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if match(n) {
			return n
		}
		// Push children right to left so the leftmost is visited first.
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return nil
}

// FindInputField returns the first editable text field in pre-order, or nil.
func FindInputField(root *Node) *Node {
	return findFirst(root, func(n *Node) bool {
		return strings.Contains(n.Class, "EditText")
	})
}

// FindSendButton returns the first node labeled as the send action, or nil.
// Text and content description are both consulted.
func FindSendButton(root *Node) *Node {
	return findFirst(root, func(n *Node) bool {
		return isSendLabel(n.Text) || isSendLabel(n.ContentDesc)
	})
}

func isSendLabel(s string) bool {
	if s == sendExact {
		return true
	}
	for _, sub := range sendSubstrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
