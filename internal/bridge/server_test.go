package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/otpower88/grabbot/internal/bus"
	"github.com/otpower88/grabbot/internal/config"
	"github.com/otpower88/grabbot/pkg/protocol"
)

// startBridge serves the bridge handler on a test HTTP server and returns
// the ws:// URL for the shim side.
func startBridge(t *testing.T, cfg config.BridgeConfig, msgBus *bus.MessageBus) (*Server, string) {
	t.Helper()
	s := New(cfg, msgBus)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialShim(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotificationForwardedToBus(t *testing.T) {
	msgBus := bus.New()
	_, url := startBridge(t, config.BridgeConfig{}, msgBus)
	conn := dialShim(t, url)

	err := conn.WriteJSON(protocol.Message{
		Type: protocol.TypeNotification,
		Notification: &protocol.Notification{
			SourceApp: "com.linecorp.line.android",
			Title:     "工作接單群組",
			Text:      "9/15(週一) 08:00 新北市 > 台北市",
		},
	})
	if err != nil {
		t.Fatalf("write notification: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, ok := msgBus.ConsumeNotification(ctx)
	if !ok {
		t.Fatal("notification never reached the bus")
	}
	if ev.Title != "工作接單群組" || ev.SourceApp != "com.linecorp.line.android" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.ReceivedAt.IsZero() {
		t.Fatal("ReceivedAt not stamped")
	}
}

// shimRespond answers every incoming request on conn with respond(req).
func shimRespond(t *testing.T, conn *websocket.Conn, respond func(protocol.Message) protocol.Message) {
	t.Helper()
	go func() {
		for {
			var req protocol.Message
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Type != protocol.TypeRequest {
				continue
			}
			res := respond(req)
			res.Type = protocol.TypeResult
			res.ID = req.ID
			if err := conn.WriteJSON(res); err != nil {
				return
			}
		}
	}()
}

func TestRootSnapshotRoundTrip(t *testing.T) {
	msgBus := bus.New()
	s, url := startBridge(t, config.BridgeConfig{}, msgBus)
	conn := dialShim(t, url)

	shimRespond(t, conn, func(req protocol.Message) protocol.Message {
		if req.Method != protocol.MethodUISnapshot {
			return protocol.Message{OK: false, Error: "unexpected method"}
		}
		return protocol.Message{OK: true, Node: &protocol.Node{
			ID:    "root",
			Class: "FrameLayout",
			Children: []*protocol.Node{
				{ID: "input", Class: "EditText"},
				{ID: "send", Text: "發送"},
			},
		}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	root, err := s.RootSnapshot(ctx)
	if err != nil {
		t.Fatalf("RootSnapshot: %v", err)
	}
	if root.ID != "root" || len(root.Children) != 2 {
		t.Fatalf("unexpected tree: %+v", root)
	}
	if root.Children[0].Class != "EditText" || root.Children[1].Text != "發送" {
		t.Fatalf("children not converted: %+v", root.Children)
	}
}

func TestClickAndSetText(t *testing.T) {
	msgBus := bus.New()
	s, url := startBridge(t, config.BridgeConfig{}, msgBus)
	conn := dialShim(t, url)

	shimRespond(t, conn, func(req protocol.Message) protocol.Message {
		switch req.Method {
		case protocol.MethodUIClick:
			return protocol.Message{OK: true}
		case protocol.MethodUISetText:
			return protocol.Message{OK: false, Error: "not editable"}
		default:
			return protocol.Message{OK: true}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := s.Click(ctx, "send")
	if err != nil || !ok {
		t.Fatalf("Click = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = s.SetText(ctx, "input", "5")
	if err != nil {
		t.Fatalf("SetText error: %v", err)
	}
	if ok {
		t.Fatal("SetText = true, shim said not editable")
	}
}

func TestCallWithoutDevice(t *testing.T) {
	msgBus := bus.New()
	s := New(config.BridgeConfig{}, msgBus)

	_, err := s.RootSnapshot(context.Background())
	if err == nil {
		t.Fatal("expected error with no device connected")
	}
}

func TestTokenRequired(t *testing.T) {
	msgBus := bus.New()
	s := New(config.BridgeConfig{Token: "secret"}, msgBus)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	if _, res, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial without token succeeded")
	} else if res != nil && res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=secret", nil)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	conn.Close()
}
