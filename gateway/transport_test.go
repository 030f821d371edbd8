package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"
)

// minimal server side of the handshake: send HELLO, capture the first frame
// the client writes, then hold the socket open
func newHandshakeServer(t *testing.T) (*httptest.Server, chan *gatewayFrame) {
	upgrader := websocket.Upgrader{}
	handshakes := make(chan *gatewayFrame, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		hello, _ := json.Marshal(&helloFrame{HeartbeatInterval: 45000})
		if err := ws.WriteJSON(&gatewayFrame{Op: opHello, Data: hello}); err != nil {
			return
		}
		var frame gatewayFrame
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		select {
		case handshakes <- &frame:
		default:
		}
		ws.ReadMessage()
	}))
	return server, handshakes
}

func TestConnIdentifyAwaitsHook(t *testing.T) {
	server, handshakes := newHandshakeServer(t)
	defer server.Close()

	hooked := make(chan struct{}, 1)
	sink, _ := newEventCollector()
	sink.Hooks = map[string]HookFunc{
		"before_identify": func(ctx context.Context) error {
			select {
			case hooked <- struct{}{}:
			default:
			}
			return nil
		},
	}
	state, err := NewState(context.Background(), sink, &capturingChunker{}, testStateSettings())
	assert.Equal(t, err, nil)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn := NewGatewayConnWithDefaults(context.Background(), state, url, "token-a", 0)
	defer conn.Close()

	select {
	case frame := <-handshakes:
		assert.Equal(t, opIdentify, frame.Op)
		var identify identifyFrame
		assert.Equal(t, json.Unmarshal(frame.Data, &identify), nil)
		assert.Equal(t, "token-a", identify.Token)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for the identify frame")
	}

	// the hook ran before the identify frame went out
	select {
	case <-hooked:
	case <-time.After(time.Second):
		t.Fatal("identify hook was never awaited")
	}
}
