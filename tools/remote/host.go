package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/emberworks/loopagent/tools"
)

// Host serves a tool registry to remote clients. It is an http.Handler that
// upgrades each request to a websocket and answers list_tools / call_tool
// frames until the peer disconnects.
type Host struct {
	registry *tools.Registry
	upgrader websocket.Upgrader
}

// NewHost wraps a registry.
func NewHost(registry *tools.Registry) *Host {
	return &Host{registry: registry}
}

// ServeHTTP implements http.Handler.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[TOOLHOST] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[TOOLHOST] Read failed: %v", err)
			}
			return
		}
		resp := h.handle(r.Context(), req)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("[TOOLHOST] Write failed: %v", err)
			return
		}
	}
}

func (h *Host) handle(ctx context.Context, req request) response {
	switch req.Method {
	case methodListTools:
		defs, err := h.registry.ListTools(ctx)
		if err != nil {
			return response{ID: req.ID, Error: err.Error()}
		}
		return response{ID: req.ID, Tools: defs}

	case methodCallTool:
		result, err := h.registry.CallTool(ctx, req.Name, req.Args)
		if err != nil {
			if errors.Is(err, tools.ErrUnknownTool) {
				return response{ID: req.ID, Error: "unknown tool: " + req.Name}
			}
			return response{ID: req.ID, Error: err.Error()}
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return response{ID: req.ID, Error: "unencodable result: " + err.Error()}
		}
		return response{ID: req.ID, Result: raw}

	default:
		return response{ID: req.ID, Error: "unknown method: " + req.Method}
	}
}
