/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Namewheel wheel sessions
//
// Each wheel lives at /path/:wheelid and is driven over /path/:wheelid/ws.
//
// Features:
// - One selection pool per wheel ID, owned by the session goroutine
// - One controlling browser per wheel; a newer connection takes over
// - Names are added as "label" or "label,note" lines
// - Checked names form the constrained subset; spins then only pick from it
// - Spins are planned server-side, resolved at once, and animated client-side
// - Wheels are reaped after a configurable idle timeout
// - Random 8-char wheel IDs via crypto/rand, with server-side collision check
// - QR code of the wheel URL, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/namewheel/wheel"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "add", "toggle", "clear", "spin"
	Text     string `json:"text,omitempty"`     // add
	Index    *int   `json:"index,omitempty"`    // toggle
	Included bool   `json:"included,omitempty"` // toggle
	Mode     string `json:"mode,omitempty"`     // spin
}

// StateMessage carries everything the browser needs to redraw.
type StateMessage struct {
	Type        string        `json:"type"` // "state"
	Entries     []wheel.Entry `json:"entries"`
	Constrained []int         `json:"constrained"`
	CanSpin     bool          `json:"can_spin"`
	Spinning    bool          `json:"spinning"`
}

// SpinMessage tells the browser how to animate, and who won.
type SpinMessage struct {
	Type       string         `json:"type"` // "spin"
	Mode       wheel.SpinMode `json:"mode"`
	Rotation   float64        `json:"rotation"`
	DurationMS int64          `json:"duration_ms"`
	Winner     wheel.Winner   `json:"winner"`
}

// SimpleMessage is for generic notifications ("error", "superseded")
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type command struct {
	client *Client
	msg    ClientMessage
}

type Session struct {
	id     string
	pool   *wheel.Pool
	src    wheel.Source
	client *Client

	register chan *Client
	unreg    chan *Client
	commands chan command
	quit     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time

	spinningUntil time.Time
	maxEntries    int
	metrics       *Metrics
}

func newSession(cfg *Config, wheelID string, src wheel.Source, metrics *Metrics) *Session {
	now := time.Now()

	s := &Session{
		id:         wheelID,
		pool:       wheel.NewPool(wheel.WithSource(src)),
		src:        src,
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		quit:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
		maxEntries: cfg.maxEntries,
		metrics:    metrics,
	}

	s.pool.Append(cfg.presetEntries...)

	return s
}

func (s *Session) run(cfg *Config) {
	for {
		select {
		case c := <-s.register:
			s.touch()

			if old := s.client; old != nil {
				select {
				case old.send <- SimpleMessage{
					Type:    "superseded",
					Message: "This wheel was opened somewhere else.",
				}:
				default:
				}
				close(old.send)
				logf(cfg, "WHEEL: Control of %s moved to a new connection", s.id)
			}

			s.client = c
			s.sendState()

		case c := <-s.unreg:
			s.touch()

			if c == s.client {
				close(c.send)
				s.client = nil
			}

		case cmd := <-s.commands:
			if cmd.client != s.client {
				continue
			}

			s.touch()
			s.handle(cfg, cmd.msg)

		case <-s.quit:
			if s.client != nil {
				close(s.client.send)
				_ = s.client.conn.Close()
				s.client = nil
			}

			return
		}
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastActive
}

// stop ends the session goroutine and disconnects its client.
func (s *Session) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

func (s *Session) handle(cfg *Config, msg ClientMessage) {
	switch msg.Type {
	case "add":
		s.handleAdd(cfg, msg.Text)

	case "toggle":
		if msg.Index == nil {
			return
		}
		s.pool.ToggleConstraint(*msg.Index, msg.Included)
		s.sendState()

	case "clear":
		s.pool.Clear()
		logf(cfg, "WHEEL: Cleared %s", s.id)
		s.sendState()

	case "spin":
		s.handleSpin(cfg, msg.Mode)
	}
}

func (s *Session) handleAdd(cfg *Config, text string) {
	entries := wheel.ParseEntries(text)
	if len(entries) == 0 {
		return
	}

	if s.maxEntries > 0 {
		room := max(s.maxEntries-s.pool.Len(), 0)
		if len(entries) > room {
			entries = entries[:room]
			s.sendError(fmt.Sprintf("Only %d entries fit on the wheel.", s.maxEntries))
		}
	}

	added := s.pool.Append(entries...)
	s.metrics.EntriesAdded.Add(float64(added))

	logf(cfg, "WHEEL: Added %d entries to %s", added, s.id)

	s.sendState()
}

func (s *Session) handleSpin(cfg *Config, rawMode string) {
	now := time.Now()

	if now.Before(s.spinningUntil) {
		s.sendError("The wheel is still spinning.")
		return
	}

	mode, err := wheel.ParseSpinMode(rawMode)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	plan := wheel.NewPlan(mode, s.src)

	winner, err := s.pool.Spin(plan.Rotation)
	switch {
	case errors.Is(err, wheel.ErrInvalidState):
		s.sendError("Add at least two names before spinning.")
		return
	case err != nil:
		s.sendError(err.Error())
		return
	}

	s.spinningUntil = now.Add(plan.Duration)
	s.metrics.spun(string(mode), winner.Constrained)

	logf(cfg, "WHEEL: %s spun %.1f degrees, %q won (constrained: %t)",
		s.id, plan.Rotation, winner.Entry.Label, winner.Constrained)

	s.deliver(SpinMessage{
		Type:       "spin",
		Mode:       plan.Mode,
		Rotation:   plan.Rotation,
		DurationMS: plan.Duration.Milliseconds(),
		Winner:     winner,
	})
	s.sendState()
}

func (s *Session) sendState() {
	s.deliver(StateMessage{
		Type:        "state",
		Entries:     s.pool.Entries(),
		Constrained: s.pool.Constrained(),
		CanSpin:     s.pool.CanSpin(),
		Spinning:    time.Now().Before(s.spinningUntil),
	})
}

func (s *Session) sendError(text string) {
	s.deliver(SimpleMessage{
		Type:    "error",
		Message: text,
	})
}

// deliver drops the client if its buffer is full.
func (s *Session) deliver(msg any) {
	if s.client == nil {
		return
	}

	select {
	case s.client.send <- msg:
	default:
		close(s.client.send)
		s.client = nil
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	maxLineBytes    = 256
	messageOverhead = 1024
	unlimitedRead   = 1 << 20
)

// readLimit caps a single client message at roughly one full wheel of lines.
func readLimit(cfg *Config) int64 {
	if cfg.maxEntries <= 0 {
		return unlimitedRead
	}

	return int64(cfg.maxEntries)*maxLineBytes + messageOverhead
}

// Manager holds a set of sessions keyed by wheel ID, so each $path/$wheelid
// is its own isolated wheel.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	source      func() wheel.Source
	metrics     *Metrics
}

func newManager(ctx context.Context, cfg *Config, metrics *Metrics) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: cfg.sessionTimeout,
		source:      wheel.CryptoSource,
		metrics:     metrics,
	}
	if m.idleTimeout > 0 {
		go m.reaperLoop(ctx, cfg)
	}
	return m
}

func (m *Manager) getSession(cfg *Config, wheelID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[wheelID]; ok {
		return s
	}

	s := newSession(cfg, wheelID, m.source(), m.metrics)
	m.sessions[wheelID] = s
	m.metrics.Sessions.Inc()
	go s.run(cfg)

	logf(cfg, "WHEEL: Opened %s", wheelID)

	return s
}

// newWheelID generates a crypto-random wheel ID and ensures it doesn't
// collide with existing wheels.
func (m *Manager) newWheelID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		m.mu.Lock()
		_, exists := m.sessions[id]
		m.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reap removes sessions idle since before cutoff and returns how many went.
func (m *Manager) reap(cfg *Config, cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	reaped := 0

	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			s.stop()
			m.metrics.Sessions.Dec()
			reaped++

			logf(cfg, "WHEEL: Reaped idle wheel %s", id)
		}
	}

	return reaped
}

// reaperLoop periodically removes sessions that have been idle longer than idleTimeout.
func (m *Manager) reaperLoop(ctx context.Context, cfg *Config) {
	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.reap(cfg, time.Now().Add(-m.idleTimeout))
		case <-ctx.Done():
			m.reap(cfg, time.Now().Add(time.Hour))
			return
		}
	}
}

// WebSocket handler that picks the session based on :wheelid
func serveWSForManager(cfg *Config, m *Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		wheelID := ps.ByName("wheelid")
		if wheelID == "" {
			http.Error(w, "missing wheel id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		conn.SetReadLimit(readLimit(cfg))

		s := m.getSession(cfg, wheelID)

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		select {
		case s.register <- client:
		case <-s.quit:
			_ = conn.Close()
			return
		}

		logf(cfg, "SERVE: Wheel %s connected from %s", wheelID, realIP(r))

		go client.writePump()
		client.readPump(s)
	}
}

func (c *Client) readPump(s *Session) {
	defer func() {
		select {
		case s.unreg <- c:
		case <-s.quit:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "add", "toggle", "clear", "spin":
			select {
			case s.commands <- command{client: c, msg: msg}:
			case <-s.quit:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current wheel URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		wheelID := ps.ByName("wheelid")
		if wheelID == "" {
			http.Error(w, "missing wheel id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /.../:wheelid/qr; strip trailing "/qr" to get the wheel URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

//go:embed static/index.html
var indexHTML []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	page := strings.ReplaceAll(string(indexHTML), "{{prefix}}", cfg.prefix)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(page))
	}
}

// redirectNewWheel handles GET /path by generating a new random wheel ID
// (with server-side collision detection) and redirecting to /path/:wheelid.
func redirectNewWheel(cfg *Config, path string, m *Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		wheelID := m.newWheelID()
		logf(cfg, "WHEEL: Created wheel %s/%s", path, wheelID)
		http.Redirect(w, r, cfg.prefix+path+"/"+wheelID, http.StatusTemporaryRedirect)
	}
}

// registerWheel sets up routes so that:
//   - $path                  → redirects to new random wheel (8-char ID)
//   - $path/:wheelid         → HTML client
//   - $path/:wheelid/ws      → WebSocket for that wheel
//   - $path/:wheelid/qr      → PNG QR code for that wheel URL
func registerWheel(cfg *Config, path string, mux *httprouter.Router, m *Manager, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewWheel(cfg, path, m))

	mux.GET(cfg.prefix+path+"/:wheelid", getIndexHandler(cfg))

	mux.GET(cfg.prefix+"/assets/wheel/app.css", serveStatic(cfg, "app.css", "text/css; charset=utf-8", errs))
	mux.GET(cfg.prefix+"/assets/wheel/app.js", serveStatic(cfg, "app.js", "application/javascript; charset=utf-8", errs))

	mux.GET(cfg.prefix+path+"/:wheelid/ws", serveWSForManager(cfg, m))

	mux.GET(cfg.prefix+path+"/:wheelid/qr", qrHandler(cfg))
}
