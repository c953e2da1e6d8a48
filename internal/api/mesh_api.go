package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tutu-network/wgsim/internal/domain"
)

// ─── Status (/api/status, /api/nodes/{name}) ────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Status())
}

type nodeResponse struct {
	Name string `json:"name"`
	domain.NodeStatus
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ns, ok := s.sim.Status().Nodes[name]
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrUnknownNode.Error()+": "+name)
		return
	}
	writeJSON(w, http.StatusOK, nodeResponse{Name: name, NodeStatus: ns})
}

// ─── Paths (/api/path) ──────────────────────────────────────────────────────

type pathResponse struct {
	Src       string   `json:"src"`
	Dst       string   `json:"dst"`
	Path      []string `json:"path"`
	Hops      int      `json:"hops"`
	LatencyMs float64  `json:"latency_ms"`
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	dst := r.URL.Query().Get("dst")
	if src == "" || dst == "" {
		writeError(w, http.StatusBadRequest, "src and dst are required")
		return
	}

	path, ok := s.sim.FindPath(src, dst)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNoPath.Error())
		return
	}
	writeJSON(w, http.StatusOK, pathResponse{
		Src:       src,
		Dst:       dst,
		Path:      path,
		Hops:      len(path) - 1,
		LatencyMs: s.sim.PathLatency(path),
	})
}

// ─── Fault Injection (/api/nodes/{name}/fail|recover) ───────────────────────

type faultResponse struct {
	Node string           `json:"node"`
	Kind domain.FaultKind `json:"kind"`
	At   time.Time        `json:"at"`
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	s.handleFault(w, r, domain.FaultFailure, s.sim.SimulateFailure)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	s.handleFault(w, r, domain.FaultRecovery, s.sim.SimulateRecovery)
}

func (s *Server) handleFault(w http.ResponseWriter, r *http.Request, kind domain.FaultKind, apply func(string) error) {
	name := chi.URLParam(r, "name")
	if err := apply(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrUnknownNode) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	resp := faultResponse{Node: name, Kind: kind, At: time.Now()}
	s.hub.Broadcast(MessageFault, resp)
	s.hub.BroadcastStatus()
	writeJSON(w, http.StatusOK, resp)
}

// ─── Health (/api/health/checks) ────────────────────────────────────────────

func (s *Server) handleHealthChecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"healthy": s.health.IsHealthy(),
		"checks":  s.health.Statuses(),
	})
}
