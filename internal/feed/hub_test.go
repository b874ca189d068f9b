package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

var (
	ethEUR = model.MustInstrument("ETH-EUR")
	btcEUR = model.MustInstrument("BTC-EUR")
)

func candle(epoch int64, v string) model.Row {
	d := decimal.RequireFromString(v)
	return model.NewRow(epoch, d, d, d, d, d)
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastWithFilter(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	all := dial(t, server, "/")
	onlyETH := dial(t, server, "/?instrument=eth-eur")
	waitClients(t, hub, 2)

	hub.OnAppend(btcEUR, []model.Row{candle(900, "30000.5")})
	hub.OnAppend(ethEUR, []model.Row{candle(900, "1500.25"), candle(1800, "1501")})

	msg := readMessage(t, all)
	assert.Equal(t, "BTC-EUR", msg.Instrument)
	msg = readMessage(t, all)
	assert.Equal(t, "ETH-EUR", msg.Instrument)

	msg = readMessage(t, onlyETH)
	assert.Equal(t, "ETH-EUR", msg.Instrument, "filtered client skips other instruments")
	require.Len(t, msg.Candles, 2)
	assert.Equal(t, int64(900), msg.Candles[0].Epoch)
	assert.True(t, msg.Candles[0].Close.Equal(decimal.RequireFromString("1500.25")))
	assert.Equal(t, "1970-01-01T00:30:00Z", msg.Candles[1].Datetime)
}

func TestHub_RejectsBadFilter(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	resp, err := http.Get(server.URL + "/?instrument=ETHEUR")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHub_SkipsSentinelOnlyBatches(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	c := &client{send: make(chan []byte, 1), done: make(chan struct{})}
	hub.add(c)

	hub.OnAppend(ethEUR, []model.Row{model.NewSentinelRow(900)})
	assert.Empty(t, c.send)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(Config{SendBuffer: 1}, nil)
	c := &client{send: make(chan []byte, 1), done: make(chan struct{})}
	hub.add(c)

	hub.OnAppend(ethEUR, []model.Row{candle(900, "1")})
	assert.Equal(t, 1, hub.Clients())

	hub.OnAppend(ethEUR, []model.Row{candle(1800, "1")})
	assert.Equal(t, 0, hub.Clients())
	select {
	case <-c.done:
	default:
		t.Fatal("slow client was not stopped")
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "/")
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "/")
	waitClients(t, hub, 1)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
