package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"policy-service/internal/domain/policy"
	wstypes "policy-service/internal/domain/websocket"
	ws "policy-service/internal/websocket"
	wshandler "policy-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticLister []policy.Policy

func (s staticLister) GetPolicies(ctx context.Context) ([]policy.Policy, error) {
	return s, nil
}

func startServer(t *testing.T) (*ws.Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(nil, zap.NewNop())
	hub.RegisterHandler(wshandler.NewPolicyHandler(staticLister{{PolicyNumber: 1001, CustomerName: "Alice"}}))
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(hub, nil, zap.NewNop()).HandleConnection)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *wstypes.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := wstypes.ParseMessage(data)
	require.NoError(t, err)
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg *wstypes.WSMessage) {
	t.Helper()
	data, err := msg.ToJSON()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestConnection_GreetsAndAnswersPing(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)

	msg := readMessage(t, conn)
	assert.Equal(t, wstypes.EventTypeConnected, msg.Type)

	send(t, conn, wstypes.NewMessage(wstypes.EventTypePing, nil))
	assert.Equal(t, wstypes.EventTypePong, readMessage(t, conn).Type)
}

func TestConnection_ReceivesPolicyEvents(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url)
	require.Equal(t, wstypes.EventTypeConnected, readMessage(t, conn).Type)

	evt := policy.NewEvent(policy.EventCancelled, policy.Policy{PolicyNumber: 1002, CustomerName: "Bob", IsCancelled: true}, time.Now())
	require.NoError(t, hub.BroadcastPolicyEvent(evt))

	msg := readMessage(t, conn)
	assert.Equal(t, wstypes.EventTypePolicyCancelled, msg.Type)
	assert.Equal(t, evt.ID, msg.ID)

	var p policy.Policy
	require.NoError(t, ws.MapToStruct(msg.Data, &p))
	assert.Equal(t, int64(1002), p.PolicyNumber)
	assert.True(t, p.IsCancelled)
}

func TestConnection_UnsubscribedClientMissesEvents(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url)
	require.Equal(t, wstypes.EventTypeConnected, readMessage(t, conn).Type)

	send(t, conn, wstypes.NewMessage(wstypes.EventTypeUnsubscribe, wstypes.UnsubscribeRequest{
		Channels: []wstypes.ChannelType{wstypes.ChannelPolicies},
	}))
	require.Equal(t, wstypes.EventTypeUnsubscribe, readMessage(t, conn).Type)

	require.NoError(t, hub.BroadcastPolicyEvent(policy.NewEvent(policy.EventCreated, policy.Policy{PolicyNumber: 1004}, time.Now())))

	// The ping reply is the next frame, so the event was not delivered.
	send(t, conn, wstypes.NewMessage(wstypes.EventTypePing, nil))
	assert.Equal(t, wstypes.EventTypePong, readMessage(t, conn).Type)
}

func TestConnection_ListPoliciesHandler(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	require.Equal(t, wstypes.EventTypeConnected, readMessage(t, conn).Type)

	send(t, conn, wstypes.NewMessage(wstypes.EventTypePolicyList, nil))
	msg := readMessage(t, conn)
	require.Equal(t, wstypes.EventTypePolicyList, msg.Type)

	var body struct {
		Policies []policy.Policy `json:"policies"`
		Count    int             `json:"count"`
	}
	require.NoError(t, ws.MapToStruct(msg.Data, &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Alice", body.Policies[0].CustomerName)
}

func TestConnection_UnknownTypeIsError(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	require.Equal(t, wstypes.EventTypeConnected, readMessage(t, conn).Type)

	send(t, conn, wstypes.NewMessage("bogus", nil))
	assert.Equal(t, wstypes.EventTypeError, readMessage(t, conn).Type)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://ui.example.com"})

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://ui.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://api.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.net")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
