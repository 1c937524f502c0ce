package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heizmon/heizdiag/diagnose"
	"github.com/heizmon/heizdiag/remedy"
)

// ActionView is the serializable form of one planned action.
type ActionView struct {
	Kind      string `json:"kind"`
	Target    string `json:"target"`
	Tier      string `json:"tier"`
	Rationale string `json:"rationale"`
}

// Payload is the serve-mode report: the latest snapshot rendering plus the
// plan derived from it.
type Payload struct {
	Report diagnose.Report `json:"report"`
	Plan   []ActionView    `json:"plan"`
}

// NewPayload renders a snapshot and plan for serving.
func NewPayload(snap *diagnose.Snapshot, plan []remedy.Action) Payload {
	views := make([]ActionView, 0, len(plan))
	for _, a := range plan {
		views = append(views, ActionView{
			Kind:      a.Kind.String(),
			Target:    a.Target,
			Tier:      a.Tier.String(),
			Rationale: a.Rationale,
		})
	}
	return Payload{Report: diagnose.NewReport(snap), Plan: views}
}

// Server exposes the latest diagnostic payload over HTTP. It never runs
// probes itself; the serve loop pushes fresh payloads via SetPayload.
type Server struct {
	verifier *Verifier

	mu      sync.RWMutex
	payload Payload
	ready   bool
}

// NewServer creates a server guarded by the verifier.
func NewServer(verifier *Verifier) *Server {
	if verifier == nil {
		verifier = NewVerifier("")
	}
	return &Server{verifier: verifier}
}

// SetPayload publishes a fresh payload.
func (s *Server) SetPayload(p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = p
	s.ready = true
}

// Handler returns the route mux. The liveness and metrics endpoints stay
// open; the report endpoint carries the actual diagnosis and is guarded.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleLiveness)
	mux.HandleFunc("/readyz", s.handleReadiness)
	mux.Handle("/report", s.verifier.Guard(http.HandlerFunc(s.handleReport)))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReadiness reflects the last run's overall status: 200 while the
// pipeline delivers (possibly degraded), 503 when it does not or before
// the first run completes.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	overall := s.payload.Report.Overall
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")

	switch {
	case !ready:
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("PENDING"))
	case overall == "failing":
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("FAILING"))
	case overall == "degraded":
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("DEGRADED"))
	default:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	payload := s.payload
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no diagnostic run completed yet"})
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
