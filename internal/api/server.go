// Package api exposes the HTTP interface for the ingestion service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kvlab/wordstat-ingest/internal/ingest"
	"github.com/kvlab/wordstat-ingest/internal/wordstat"
)

// Server wires HTTP handlers to the connector and ingestion writer.
type Server struct {
	router    chi.Router
	connector *wordstat.Connector
	writer    *ingest.Writer
	publisher wordstat.Publisher
	topic     string
	idGen     wordstat.IDGenerator
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The
// publisher is optional; with an empty topic no events are emitted.
func NewServer(
	connector *wordstat.Connector,
	writer *ingest.Writer,
	publisher wordstat.Publisher,
	topic string,
	idGen wordstat.IDGenerator,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		connector: connector,
		writer:    writer,
		publisher: publisher,
		topic:     topic,
		idGen:     idGen,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(idGen))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(10 * time.Minute))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/regions", s.listRegions)
		r.Post("/regions/sync", s.syncRegions)
		r.Route("/ingest", func(r chi.Router) {
			r.Post("/top", s.ingestTop)
			r.Post("/dynamics", s.ingestDynamics)
		})
		r.Post("/batch", s.runBatch)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.connector.Regions())
}

func (s *Server) syncRegions(w http.ResponseWriter, r *http.Request) {
	added, err := s.writer.SyncRegions(r.Context(), s.connector.Regions())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

type ingestTopRequest struct {
	Text    string   `json:"text"`
	Phrases []string `json:"phrases"`
	Regions []int64  `json:"regions"`
	Devices []string `json:"devices"`
}

type ingestResponse struct {
	RunID    string            `json:"run_id,omitempty"`
	Counters wordstat.Counters `json:"counters"`
	Summary  ingest.Summary    `json:"summary"`
	Errors   map[string]string `json:"errors,omitempty"`
}

func (s *Server) ingestTop(w http.ResponseWriter, r *http.Request) {
	var req ingestTopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	phrases := collectPhrases(req.Text, req.Phrases)
	if len(phrases) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no phrases supplied"})
		return
	}

	opts := wordstat.TopOptions{Regions: req.Regions, Devices: req.Devices}
	batch, err := s.connector.TopBatch(r.Context(), phrases, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	summary := s.writer.PersistTop(r.Context(), batch, opts)

	resp := ingestResponse{
		RunID:    s.newRunID(),
		Counters: batch.Counters,
		Summary:  summary,
		Errors:   outcomeErrors(batch),
	}
	s.publishSummary(r.Context(), "top", resp)
	writeJSON(w, http.StatusOK, resp)
}

type ingestDynamicsRequest struct {
	Text     string          `json:"text"`
	Phrases  []string        `json:"phrases"`
	Period   wordstat.Period `json:"period"`
	FromDate string          `json:"from_date"`
	ToDate   string          `json:"to_date"`
	Regions  []int64         `json:"regions"`
	Devices  []string        `json:"devices"`
}

func (s *Server) ingestDynamics(w http.ResponseWriter, r *http.Request) {
	var req ingestDynamicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	phrases := collectPhrases(req.Text, req.Phrases)
	if len(phrases) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no phrases supplied"})
		return
	}

	opts := wordstat.DynamicsOptions{
		Period:   req.Period,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		Regions:  req.Regions,
		Devices:  req.Devices,
	}
	batch, err := s.connector.DynamicsBatch(r.Context(), phrases, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := s.writer.PersistDynamics(r.Context(), batch, opts)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp := ingestResponse{
		RunID:    s.newRunID(),
		Counters: batch.Counters,
		Summary:  summary,
		Errors:   dynamicsErrors(batch),
	}
	s.publishSummary(r.Context(), "dynamics", resp)
	writeJSON(w, http.StatusOK, resp)
}

type batchResponseItem struct {
	Method   string                   `json:"method"`
	Phrase   string                   `json:"phrase"`
	Top      *wordstat.TopResult      `json:"top,omitempty"`
	Dynamics *wordstat.DynamicsResult `json:"dynamics,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// runBatch executes a heterogeneous batch without persistence and
// returns positional outcomes.
func (s *Server) runBatch(w http.ResponseWriter, r *http.Request) {
	var requests []wordstat.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&requests); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	outcomes, counters, err := s.connector.RunRequests(r.Context(), requests)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]batchResponseItem, 0, len(outcomes))
	for _, out := range outcomes {
		item := batchResponseItem{
			Method:   out.Method,
			Phrase:   out.Phrase,
			Top:      out.Top,
			Dynamics: out.Dynamics,
		}
		if out.Err != nil {
			item.Error = out.Err.Error()
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"counters": counters,
		"results":  items,
	})
}

func (s *Server) newRunID() string {
	if s.idGen == nil {
		return ""
	}
	id, err := s.idGen.NewID()
	if err != nil {
		s.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func (s *Server) publishSummary(ctx context.Context, kind string, resp ingestResponse) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	payload := map[string]any{
		"kind":     kind,
		"run_id":   resp.RunID,
		"counters": resp.Counters,
		"summary":  resp.Summary,
	}
	if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn("publish run summary failed", zap.String("kind", kind), zap.Error(err))
	}
}

func collectPhrases(text string, phrases []string) []string {
	out := wordstat.SplitPhrases(text)
	for _, p := range phrases {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func outcomeErrors(batch wordstat.TopBatch) map[string]string {
	errs := make(map[string]string)
	for phrase, outcome := range batch.Results {
		if outcome.Err != nil {
			errs[phrase] = outcome.Err.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func dynamicsErrors(batch wordstat.DynamicsBatch) map[string]string {
	errs := make(map[string]string)
	for phrase, outcome := range batch.Results {
		if outcome.Err != nil {
			errs[phrase] = outcome.Err.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// writeError maps the typed error set onto HTTP statuses: validation
// failures are the client's fault, everything else is a 502/500.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *wordstat.ValidationError
	var apiErr *wordstat.RemoteAPIError
	var transportErr *wordstat.TransportError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &apiErr), errors.As(err, &transportErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
