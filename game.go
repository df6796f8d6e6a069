// Pricebox Price Guessing Game
//
// A game master picks an item set and walks the room through it one item
// at a time. Players see each item without its price and submit a guess.
// The game master reveals everyone's guesses, then the actual price, and
// each guess is scored by how close it came, scaled by the item's
// difficulty. After the last item a scoreboard is shown.
//
// Features:
// - WebSockets per game ID: /play/:gameid and /play/:gameid/ws
// - Clients identified by cookie (client id); reconnecting resumes the role
// - First "join as game master" wins; the role sticks to that client id
// - Players rejoin under the same name after losing their connection
// - Actual prices and other players' guesses are withheld until revealed
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current session, backed by go-qrcode

package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/pricebox/games/priceguess"
)

const (
	maxMessageSize = 4096
	sendBuffer     = 32
)

type Client struct {
	conn     *websocket.Conn
	send     chan priceguess.Event
	clientID string
}

type inboundMessage struct {
	client *Client
	msg    priceguess.Inbound
	err    error
}

// Hub owns one game session. Every session call happens on the run
// goroutine, so messages are applied one at a time in arrival order.
type Hub struct {
	id       string
	clients  map[*Client]bool
	session  *priceguess.Session
	dispatch *priceguess.Dispatcher

	register chan *Client
	unreg    chan *Client
	inbox    chan inboundMessage
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
}

func newHub(gameID string, dispatch *priceguess.Dispatcher) *Hub {
	now := time.Now()
	return &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		session:    priceguess.NewSession(),
		dispatch:   dispatch,
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		inbox:      make(chan inboundMessage, 64),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.touch()
			h.clients[c] = true
			h.deliver(h.dispatch.Handle(h.session, c.clientID, priceguess.Connect{}))

		case c := <-h.unreg:
			h.touch()
			h.drop(c)

			if !h.connected(c.clientID) {
				h.deliver(h.dispatch.Handle(h.session, c.clientID, priceguess.Disconnect{}))
			}

		case in := <-h.inbox:
			h.touch()

			if in.err != nil {
				logf(cfg, "GAMES: Bad message from %s in %s: %v", in.client.clientID, h.id, in.err)
				h.deliver([]priceguess.Event{priceguess.ErrorEvent(in.client.clientID, in.err)})
				continue
			}

			h.deliver(h.dispatch.Handle(h.session, in.client.clientID, in.msg))

		case <-h.done:
			for c := range h.clients {
				h.drop(c)
				_ = c.conn.Close()
			}
			return
		}
	}
}

// stop ends the run loop and disconnects every client.
func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// connected reports whether any socket for clientID is still open.
func (h *Hub) connected(clientID string) bool {
	for c := range h.clients {
		if c.clientID == clientID {
			return true
		}
	}
	return false
}

func (h *Hub) openClientIDs() []string {
	seen := make(map[string]bool, len(h.clients))
	ids := make([]string, 0, len(h.clients))
	for c := range h.clients {
		if !seen[c.clientID] {
			seen[c.clientID] = true
			ids = append(ids, c.clientID)
		}
	}
	return ids
}

// deliver fans events out to their audiences. Clients that cannot keep up
// are dropped.
func (h *Hub) deliver(events []priceguess.Event) {
	for _, ev := range events {
		targets := make(map[string]bool)
		for _, id := range priceguess.Recipients(h.session, ev, h.openClientIDs()) {
			targets[id] = true
		}

		for c := range h.clients {
			if !targets[c.clientID] {
				continue
			}

			select {
			case c.send <- ev:
			default:
				h.drop(c)
			}
		}
	}
}

// enqueue hands a client message to the hub unless it has stopped.
func (h *Hub) enqueue(in inboundMessage) bool {
	select {
	case h.inbox <- in:
		return true
	case <-h.done:
		return false
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const clientCookieName = "pricebox_id"

// getOrSetClientID returns the client id carried by r, or mints one and adds
// its Set-Cookie line to h.
func getOrSetClientID(h http.Header, r *http.Request) string {
	if c, err := r.Cookie(clientCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	cookie := &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	h.Add("Set-Cookie", cookie.String())

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each /play/:gameid
// is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	dispatch    *priceguess.Dispatcher
	idleTimeout time.Duration
	done        chan struct{}
}

func newGameManager(cfg *Config, sets priceguess.SetSource) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		dispatch:    priceguess.NewDispatcher(sets, gameLogger(cfg)),
		idleTimeout: cfg.sessionTimeout,
		done:        make(chan struct{}),
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop(cfg)
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gameID, gm.dispatch)
	gm.hubs[gameID] = hub
	go hub.run(cfg)
	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
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

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reap removes hubs idle since before cutoff.
func (gm *GameManager) reap(cfg *Config, cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		if hub.idleSince().Before(cutoff) {
			delete(gm.hubs, id)
			hub.stop()
			logf(cfg, "GAMES: Reaped idle game %s", id)
		}
	}
}

func (gm *GameManager) reaperLoop(cfg *Config) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			gm.reap(cfg, time.Now().Add(-gm.idleTimeout))
		case <-gm.done:
			return
		}
	}
}

// shutdown stops the reaper and every hub.
func (gm *GameManager) shutdown() {
	close(gm.done)

	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.stop()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		// Upgrade only writes the headers it is handed.
		hdr := http.Header{}

		clientID := getOrSetClientID(hdr, r)
		if clientID == "" {
			http.Error(w, "unable to assign client id", http.StatusInternalServerError)
			return
		}

		hub := gm.getHub(cfg, gameID)

		conn, err := upgrader.Upgrade(w, r, hdr)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan priceguess.Event, sendBuffer),
			clientID: clientID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := priceguess.ParseInbound(data)
		if !h.enqueue(inboundMessage{client: c, msg: msg, err: err}) {
			return
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

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// redirectNewGame handles GET /play by generating a new random game ID
// (with server-side collision detection) and redirecting to /play/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerPriceGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerPriceGame(cfg *Config, path string, mux *httprouter.Router, sets priceguess.SetSource, errs chan<- error) *GameManager {
	gm := newGameManager(cfg, sets)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))
	mux.GET(cfg.prefix+path+"/:gameid", servePlayPage(cfg, errs))
	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)

	return gm
}
