package devserver

import (
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const reloadWriteTimeout = time.Second

// reloadHub holds the live reload connections of open pages and tells them
// to reload after a build or a change to the public directory.
type reloadHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newReloadHub(origins []string) *reloadHub {
	return &reloadHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || slices.Contains(origins, origin) {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *reloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Live reload upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// pages never send anything, reading only notices the close
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast sends reason to every connected page
func (h *reloadHub) broadcast(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(reloadWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reason)); err != nil {
			log.Debug().Err(err).Msg("Dropping live reload client")
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}

	if len(h.clients) > 0 {
		log.Debug().Str("reason", reason).Int("clients", len(h.clients)).Msg("Live reload sent")
	}
}

func (h *reloadHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *reloadHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = conn.Close()
	delete(h.clients, conn)
}

func (h *reloadHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closed"),
			time.Now().Add(reloadWriteTimeout))
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
