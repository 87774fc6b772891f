package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
)

// hubRequestTimeout bounds one round trip to the hub.
const hubRequestTimeout = 10 * time.Second

// NodeSummary is the list view of a node.
type NodeSummary struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Attributes   int      `json:"attributes"`
}

// AttributeResponse describes one attribute instance.
type AttributeResponse struct {
	ID          int     `json:"id"`
	NodeID      int     `json:"node_id"`
	Type        string  `json:"type"`
	Instance    int     `json:"instance"`
	Value       any     `json:"value"`
	TargetValue any     `json:"target_value"`
	Unit        string  `json:"unit,omitempty"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Step        float64 `json:"step"`
	Editable    bool    `json:"editable"`
}

// SetAttributeRequest is the body of PUT /nodes/{id}/attributes/{name}.
type SetAttributeRequest struct {
	Value    any `json:"value"`
	Instance int `json:"instance"`
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), hubRequestTimeout)
	defer cancel()

	nodes, err := s.nodes.Nodes(ctx)
	if err != nil {
		writeHubError(w, err)
		return
	}

	capability := r.URL.Query().Get("capability")
	out := make([]NodeSummary, 0, len(nodes))
	for _, d := range nodes {
		if capability != "" && !d.Implements(capability) {
			continue
		}
		out = append(out, NodeSummary{
			ID:           d.ID(),
			Name:         d.Name(),
			Capabilities: d.Capabilities().Names(),
			Attributes:   len(d.Properties()),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": out,
		"count": len(out),
	})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupNode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetAttribute(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupNode(w, r)
	if !ok {
		return
	}

	instance := 0
	if raw := r.URL.Query().Get("instance"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "instance must be an integer")
			return
		}
		instance = n
	}

	name := chi.URLParam(r, "name")
	p, err := d.GetProperty(name, instance)
	if err != nil {
		writeHubError(w, err)
		return
	}
	if p == nil {
		writeNotFound(w, fmt.Sprintf("node %d has no %s attribute", d.ID(), name))
		return
	}
	writeJSON(w, http.StatusOK, attributeResponse(p))
}

// handleSetAttribute asks the hub to change an attribute. The hub applies
// the change asynchronously, so the response is 202 Accepted.
func (s *Server) handleSetAttribute(w http.ResponseWriter, r *http.Request) {
	var req SetAttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	d, ok := s.lookupNode(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hubRequestTimeout)
	defer cancel()

	name := chi.URLParam(r, "name")
	if err := d.RequestChange(ctx, name, req.Value, req.Instance); err != nil {
		writeHubError(w, err)
		return
	}

	s.logger.Info("attribute change requested",
		"node_id", d.ID(),
		"attribute", name,
		"instance", req.Instance,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "accepted",
		"node_id":   d.ID(),
		"attribute": name,
		"instance":  req.Instance,
		"value":     req.Value,
	})
}

func (s *Server) handleRefreshNodes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), hubRequestTimeout)
	defer cancel()

	if err := s.nodes.RefreshNodes(ctx); err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// lookupNode resolves the {id} URL parameter, writing the error response
// itself when it fails.
func (s *Server) lookupNode(w http.ResponseWriter, r *http.Request) (*homee.Device, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, "node id must be an integer")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), hubRequestTimeout)
	defer cancel()

	d, err := s.nodes.Node(ctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "hub did not answer in time")
			return nil, false
		}
		writeHubError(w, err)
		return nil, false
	}
	if d == nil {
		writeNotFound(w, fmt.Sprintf("node %d not found", id))
		return nil, false
	}
	return d, true
}

func attributeResponse(p *homee.Property) AttributeResponse {
	lo, step, hi := p.Scale()
	return AttributeResponse{
		ID:          p.ID(),
		NodeID:      p.NodeID(),
		Type:        p.Name(),
		Instance:    p.Instance(),
		Value:       p.Value(),
		TargetValue: p.TargetValue(),
		Unit:        p.Unit(),
		Min:         lo,
		Max:         hi,
		Step:        step,
		Editable:    p.Editable(),
	}
}
