package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/voltgazer/internal/models"
)

func startHub(t *testing.T, provider func(ctx context.Context) (*models.ReadingPage, error)) (*Hub, *websocket.Conn) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(zap.NewNop())
	hub.SetInitDataProvider(provider)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn)
		client.Register()
		go client.ReadPump()
		go client.WritePump()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestHubSendsInitThenReadings(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hub, conn := startHub(t, func(context.Context) (*models.ReadingPage, error) {
		return &models.ReadingPage{
			Items:      []*models.Reading{{ID: 1, BatteryID: "b1", Voltage: 3.7, Timestamp: ts}},
			TotalItems: 1,
		}, nil
	})

	msg := readMessage(t, conn)
	if msg.Type != MsgTypeInit {
		t.Fatalf("expected init message, got %q", msg.Type)
	}

	// 等待注册完成后再广播
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	hub.PublishReadings([]*models.Reading{{ID: 2, BatteryID: "b1", Voltage: 3.6, Timestamp: ts.Add(time.Hour)}})

	msg = readMessage(t, conn)
	if msg.Type != MsgTypeReadings {
		t.Fatalf("expected readings message, got %q", msg.Type)
	}
	items, ok := msg.Data.([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("expected one reading in payload, got %#v", msg.Data)
	}
	first := items[0].(map[string]interface{})
	if first["battery_id"] != "b1" || first["voltage"] != 3.6 {
		t.Fatalf("unexpected payload %v", first)
	}
}

func TestHubInitError(t *testing.T) {
	_, conn := startHub(t, func(context.Context) (*models.ReadingPage, error) {
		return nil, errors.New("storage unavailable")
	})

	msg := readMessage(t, conn)
	if msg.Type != MsgTypeError {
		t.Fatalf("expected error message, got %q", msg.Type)
	}
}

func TestHubSlowInitDoesNotBlockBroadcast(t *testing.T) {
	release := make(chan struct{})
	hub, conn := startHub(t, func(ctx context.Context) (*models.ReadingPage, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &models.ReadingPage{Items: []*models.Reading{}}, nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected registered client while init data is loading")
	}

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hub.PublishReadings([]*models.Reading{{ID: 1, BatteryID: "b1", Voltage: 3.7, Timestamp: ts}})

	msg := readMessage(t, conn)
	if msg.Type != MsgTypeReadings {
		t.Fatalf("expected readings before init completes, got %q", msg.Type)
	}

	close(release)
	msg = readMessage(t, conn)
	if msg.Type != MsgTypeInit {
		t.Fatalf("expected init message after release, got %q", msg.Type)
	}
}
