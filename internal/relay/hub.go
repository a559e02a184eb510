package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mlesc/internal/crypto"
)

const (
	DefaultHistorySize = 100

	joinTimeout  = 10 * time.Second
	memberBuffer = 256
)

// Hub is an in-memory Mles channel server. It implements http.Handler.
type Hub struct {
	historySize int
	serverKey   []byte
	log         zerolog.Logger
	upgrader    websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	members map[*member]struct{}
	history [][]byte
}

type member struct {
	uid  string
	send chan []byte
}

// NewHub returns a hub replaying up to historySize frames to new joiners.
// With a non-empty serverKey, joins whose auth token does not match are
// refused.
func NewHub(historySize int, serverKey []byte, log zerolog.Logger) *Hub {
	if historySize < 0 {
		historySize = 0
	}
	return &Hub{
		historySize: historySize,
		serverKey:   serverKey,
		log:         log.With().Str("component", "hub").Logger(),
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
		rooms: make(map[string]*room),
	}
}

// Members returns how many connections are joined to channel.
func (h *Hub) Members(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[channel]; ok {
		return len(r.members)
	}
	return 0
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}
	defer ws.Close()
	ws.SetReadLimit(MaxFrameSize)

	join, ok := h.readJoin(ws)
	if !ok {
		return
	}
	log := h.log.With().Str("uid", join.UID).Str("channel", join.Channel).Logger()

	m := &member{uid: join.UID, send: make(chan []byte, h.historySize+memberBuffer)}
	h.join(join.Channel, m)
	log.Info().Msg("joined")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for frame := range m.send {
			if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				log.Debug().Err(err).Msg("write failed")
				ws.Close()
				return
			}
		}
	}()

	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Msg("left")
			} else {
				log.Debug().Err(err).Msg("read failed")
			}
			break
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		h.broadcast(join.Channel, m, data)
	}

	h.leave(join.Channel, m)
	wg.Wait()
}

func (h *Hub) readJoin(ws *websocket.Conn) (JoinMessage, bool) {
	var join JoinMessage
	_ = ws.SetReadDeadline(time.Now().Add(joinTimeout))
	typ, data, err := ws.ReadMessage()
	_ = ws.SetReadDeadline(time.Time{})
	if err != nil {
		return join, false
	}
	reject := func(reason string) (JoinMessage, bool) {
		h.log.Warn().Str("reason", reason).Msg("join refused")
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		return JoinMessage{}, false
	}
	if typ != websocket.TextMessage || json.Unmarshal(data, &join) != nil {
		return reject("malformed join")
	}
	if join.UID == "" || join.Channel == "" {
		return reject("missing uid or channel")
	}
	if len(h.serverKey) > 0 && join.Auth != crypto.JoinToken(join.UID, join.Channel, h.serverKey) {
		return reject("bad auth")
	}
	return join, true
}

func (h *Hub) join(channel string, m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[channel]
	if !ok {
		r = &room{members: make(map[*member]struct{})}
		h.rooms[channel] = r
	}
	for _, frame := range r.history {
		m.send <- frame
	}
	r.members[m] = struct{}{}
}

func (h *Hub) leave(channel string, m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[channel]
	delete(r.members, m)
	close(m.send)
	if len(r.members) == 0 && len(r.history) == 0 {
		delete(h.rooms, channel)
	}
}

func (h *Hub) broadcast(channel string, from *member, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[channel]
	if h.historySize > 0 {
		r.history = append(r.history, frame)
		if n := len(r.history) - h.historySize; n > 0 {
			r.history = append(r.history[:0:0], r.history[n:]...)
		}
	}
	for m := range r.members {
		if m == from {
			continue
		}
		select {
		case m.send <- frame:
		default:
			h.log.Warn().Str("uid", m.uid).Str("channel", channel).Msg("member too slow, frame dropped")
		}
	}
}
