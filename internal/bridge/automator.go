package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/otpower88/grabbot/internal/uitree"
	"github.com/otpower88/grabbot/pkg/protocol"
)

// The bridge server is the executor's Automator: each method is one
// request/reply round-trip with the shim.

// RootSnapshot asks the shim for the current UI tree. Returns an error when
// no shim is connected or the shim reports no active window.
func (s *Server) RootSnapshot(ctx context.Context) (*uitree.Node, error) {
	res, err := s.call(ctx, protocol.MethodUISnapshot, nil)
	if err != nil {
		return nil, err
	}
	if !res.OK || res.Node == nil {
		return nil, fmt.Errorf("bridge: no root window: %s", res.Error)
	}
	return toTree(res.Node), nil
}

// Click taps a node from the most recent snapshot.
func (s *Server) Click(ctx context.Context, nodeID string) (bool, error) {
	res, err := s.call(ctx, protocol.MethodUIClick, protocol.ClickParams{NodeID: nodeID})
	if err != nil {
		return false, err
	}
	return res.OK, nil
}

// SetText writes text into an editable node.
func (s *Server) SetText(ctx context.Context, nodeID, text string) (bool, error) {
	res, err := s.call(ctx, protocol.MethodUISetText, protocol.SetTextParams{NodeID: nodeID, Text: text})
	if err != nil {
		return false, err
	}
	return res.OK, nil
}

// Home triggers the global "return to home screen" action.
func (s *Server) Home(ctx context.Context) error {
	_, err := s.call(ctx, protocol.MethodUIHome, nil)
	return err
}

// toTree converts the wire snapshot into the locator's node model.
func toTree(n *protocol.Node) *uitree.Node {
	if n == nil {
		return nil
	}
	out := &uitree.Node{
		ID:          n.ID,
		Class:       n.Class,
		Text:        n.Text,
		ContentDesc: n.ContentDesc,
	}
	for _, c := range n.Children {
		if child := toTree(c); child != nil {
			out.Children = append(out.Children, child)
		}
	}
	return out
}

func jsonMarshal(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("bridge: marshal params: %w", err)
	}
	return data, nil
}
