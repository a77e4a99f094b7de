package session

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*Registry, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := New(zerolog.Nop())

	r := gin.New()
	r.GET("/ws/:client_id", func(c *gin.Context) {
		reg.Handler(c, c.Param("client_id"))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return reg, srv
}

func dial(t *testing.T, srv *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()
	url := "ws" + srv.URL[len("http"):] + "/ws/" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", clientID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRegistryDirectedSend(t *testing.T) {
	reg, srv := newTestServer(t)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")

	waitForCount(t, reg, 2)

	if err := alice.WriteJSON(directedMessage{To: "bob", Content: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got directedMessage
	for i := 0; i < 4; i++ {
		if err := bob.ReadJSON(&got); err != nil {
			t.Fatalf("bob read: %v", err)
		}
		if got.Content == "hello" && got.To == "bob" {
			return
		}
	}
	t.Fatalf("bob never received the directed message, last got %+v", got)
}

func TestRegistryBroadcastOnDisconnect(t *testing.T) {
	reg, srv := newTestServer(t)

	bob := dial(t, srv, "bob")
	waitForCount(t, reg, 1)

	carol := dial(t, srv, "carol")
	waitForCount(t, reg, 2)
	_ = carol.Close()

	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got directedMessage
	found := false
	for i := 0; i < 4; i++ {
		if err := bob.ReadJSON(&got); err != nil {
			break
		}
		if got.Content == "carol left" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("bob did not observe carol's disconnect broadcast")
	}
}

func waitForCount(t *testing.T, reg *Registry, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("registry never reached %d connections (has %d)", n, reg.Count())
}
