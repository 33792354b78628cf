package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/chat-client/chat"
)

const bridgeWriteWait = 10 * time.Second

// client is the part of the dispatcher a UI collaborator needs.
type client interface {
	Connect()
	SetIdentity(name string)
	UpdateComposedText(text string)
	Send()
	Snapshot() chat.Snapshot
	Subscribe() (<-chan chat.Snapshot, func())
}

// NewBridge builds the local HTTP bridge: intents in, snapshots out. Browser
// requests from other origins are refused, and intent bodies must be JSON.
func NewBridge(c client, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Snapshot())
	})
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		streamSnapshots(w, r, c)
	})
	r.Group(func(r chi.Router) {
		r.Use(sameOrigin, middleware.AllowContentType("application/json"))
		postIntents(r, c)
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func postIntents(r chi.Router, c client) {
	r.Post("/connect", func(w http.ResponseWriter, r *http.Request) {
		c.Connect()
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/identity", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		c.SetIdentity(req.Name)
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/draft", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		c.UpdateComposedText(req.Text)
		w.WriteHeader(http.StatusAccepted)
	})
	// POST /send sends the pending draft, or the given text when a body is present.
	r.Post("/send", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text *string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Text != nil {
			c.UpdateComposedText(*req.Text)
		}
		c.Send()
		w.WriteHeader(http.StatusAccepted)
	})
}

// originAllowed accepts requests without an Origin header and those whose
// Origin names the bridge itself.
func originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !originAllowed(r) {
			http.Error(w, "cross-origin request rejected", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Debug().Err(err).Msg("[chat] bridge write json")
	}
}

// streamSnapshots pushes every snapshot to a browser-side renderer until
// either side goes away.
func streamSnapshots(w http.ResponseWriter, r *http.Request, c client) {
	upgrader := websocket.Upgrader{CheckOrigin: originAllowed}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, cancel := c.Subscribe()
	defer cancel()

	// drain reads so close frames from the peer are processed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "client shutdown"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(bridgeWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				log.Debug().Err(err).Msg("[chat] bridge stream write")
				return
			}
		}
	}
}
