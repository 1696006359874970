package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Screener/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func TestProgressHubBroadcast(t *testing.T) {
	hub := NewProgressHub(nil)
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.PublishProgress(models.SyncProgress{Universe: "CAC40", Key: "MC.PA", OK: true, Processed: 1, Total: 2})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got models.SyncProgress
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != "MC.PA" || !got.OK || got.Total != 2 {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestProgressHubWithoutSubscribers(t *testing.T) {
	hub := NewProgressHub(nil)
	hub.PublishProgress(models.SyncProgress{Key: "AAA"})
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers")
	}
	hub.Close()
}
