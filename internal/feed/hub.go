package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

// Config holds hub settings.
type Config struct {
	SendBuffer   int           // queued messages per client
	WriteTimeout time.Duration // per message
	PingInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:   64,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Candle is the wire form of a stored row.
type Candle struct {
	Epoch    int64           `json:"epoch"`
	Low      decimal.Decimal `json:"low"`
	High     decimal.Decimal `json:"high"`
	Open     decimal.Decimal `json:"open"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
	Datetime string          `json:"datetime"`
}

// Message is one broadcast batch.
type Message struct {
	Instrument string   `json:"instrument"`
	Candles    []Candle `json:"candles"`
}

// Hub fans appended rows out to connected websocket clients. It implements
// ingest.Listener and http.Handler.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn   *websocket.Conn
	filter model.Instrument // zero means every instrument
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) stop() { c.once.Do(func() { close(c.done) }) }

func (c *client) wants(inst model.Instrument) bool {
	return c.filter.IsZero() || c.filter == inst
}

// NewHub creates a Hub.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	return &Hub{
		cfg:    cfg,
		logger: logger.With("component", "feed"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var filter model.Instrument
	if id := r.URL.Query().Get("instrument"); id != "" {
		inst, err := model.ParseInstrument(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = inst
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		filter: filter,
		send:   make(chan []byte, h.cfg.SendBuffer),
		done:   make(chan struct{}),
	}
	if !h.add(c) {
		conn.Close()
		return
	}

	h.logger.Debug("feed client connected",
		"remote", r.RemoteAddr,
		"instrument", filter.String(),
	)

	go h.writeLoop(c)
	go h.readLoop(c)
}

// OnAppend broadcasts rows of inst to every interested client.
func (h *Hub) OnAppend(inst model.Instrument, rows []model.Row) {
	msg := Message{Instrument: inst.String(), Candles: make([]Candle, 0, len(rows))}
	for _, r := range rows {
		if r.IsSentinel() {
			continue
		}
		msg.Candles = append(msg.Candles, Candle{
			Epoch:    r.Epoch,
			Low:      r.Low.Decimal,
			High:     r.High.Decimal,
			Open:     r.Open.Decimal,
			Close:    r.Close.Decimal,
			Volume:   r.Volume.Decimal,
			Datetime: r.Datetime,
		})
	}
	if len(msg.Candles) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode feed message", "instrument", msg.Instrument, "error", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.wants(inst) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("feed client too slow, disconnecting", "instrument", msg.Instrument)
		h.remove(c)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.stop()
	}
	return nil
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
}

// writeLoop owns all writes to the connection and closes it on exit.
func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ping.Stop()
		h.remove(c)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("feed write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// readLoop discards client input and notices disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
