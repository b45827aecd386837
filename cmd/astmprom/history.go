package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/julienschmidt/httprouter"
)

// history keeps the most recent messages for the HTTP API.
type history struct {
	sub *fanoutSub[*received]

	mut  sync.Mutex
	ring []*received
	next int
	full bool
}

func newHistory(size int, messages *fanout[*received]) *history {
	// Listen right away so nothing published before Serve is missed.
	return &history{sub: messages.Listen(), ring: make([]*received, max(size, 1))}
}

func (h *history) Serve(ctx context.Context) error {
	for {
		select {
		case rec := <-h.sub.Channel():
			h.add(rec)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *history) add(rec *received) {
	h.mut.Lock()
	defer h.mut.Unlock()
	h.ring[h.next] = rec
	h.next = (h.next + 1) % len(h.ring)
	if h.next == 0 {
		h.full = true
	}
}

// list returns the kept messages, newest first.
func (h *history) list() []*received {
	h.mut.Lock()
	defer h.mut.Unlock()
	n := h.next
	if h.full {
		n = len(h.ring)
	}
	res := make([]*received, 0, n)
	for i := 1; i <= n; i++ {
		res = append(res, h.ring[(h.next-i+len(h.ring))%len(h.ring)])
	}
	return res
}

// get returns the newest kept message with the given id.
func (h *history) get(id int64) (*received, bool) {
	for _, rec := range h.list() {
		if rec.ID == id {
			return rec, true
		}
	}
	return nil, false
}

func (h *history) String() string {
	return "history"
}

func (h *history) handleList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list := h.list()
	if r.URL.Query().Get("valid") == "true" {
		valid := list[:0:0]
		for _, rec := range list {
			if rec.Valid {
				valid = append(valid, rec)
			}
		}
		list = valid
	}
	writeJSON(w, list)
}

func (h *history) handleGet(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	rec, ok := h.get(id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
