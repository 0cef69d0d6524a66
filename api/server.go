package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/thesis-advisor/backend/internal/advisor"
	"github.com/DeafMist/thesis-advisor/backend/internal/completion"
	"github.com/DeafMist/thesis-advisor/backend/internal/config"
	"github.com/DeafMist/thesis-advisor/backend/internal/dataset"
	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

const maxBodyBytes = 64 << 10

type healthChecker interface {
	Health(ctx context.Context) error
}

type server struct {
	log       *slog.Logger
	cfg       *config.API
	ds        *dataset.Dataset
	health    healthChecker
	completer advisor.Completer
	recommend *advisor.Pipeline
	evaluate  *advisor.Pipeline
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/filters", s.handleFilters)
	r.Get("/records", s.handleRecords)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/recommendations", s.handleRecommend)
		r.Post("/evaluations", s.handleEvaluate)
	})
	return r
}

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

type filtersResponse struct {
	Programs []string `json:"programs"`
	Methods  []string `json:"methods"`
}

type recordsResponse struct {
	Count   int                   `json:"count"`
	Records []models.ThesisRecord `json:"records"`
}

type recommendRequest struct {
	Programs []string `json:"programs"`
	Methods  []string `json:"methods"`
	Keyword  string   `json:"keyword"`
	Question string   `json:"question"`
}

type evaluateRequest struct {
	Programs []string `json:"programs"`
	Methods  []string `json:"methods"`
	Keyword  string   `json:"keyword"`
	Topic    string   `json:"topic"`
}

type adviceResponse struct {
	Status       advisor.Status `json:"status"`
	Mode         advisor.Mode   `json:"mode"`
	Matched      int            `json:"matched"`
	ContextCount int            `json:"context_count"`
	Context      string         `json:"context,omitempty"`
	Stats        *advisor.Stats `json:"stats,omitempty"`
	Text         string         `json:"text,omitempty"`
	Verdict      string         `json:"verdict,omitempty"`
	VerdictLabel string         `json:"verdict_label,omitempty"`
	Message      string         `json:"message,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.health.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": s.ds.Len()})
}

func (s *server) handleFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, filtersResponse{
		Programs: s.ds.Unique(models.FieldProgram),
		Methods:  s.ds.Unique(models.FieldMethod),
	})
}

func (s *server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := advisor.Criteria{
		Programs: parseList(q["programs"]),
		Methods:  parseList(q["methods"]),
		Keyword:  q.Get("keyword"),
	}

	view := advisor.Filter(s.ds.Records(), criteria, s.cfg.KeywordFields)
	writeJSON(w, http.StatusOK, recordsResponse{Count: len(view), Records: view})
}

func (s *server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	s.run(w, r, s.recommend, advisor.Request{
		Criteria: advisor.Criteria{Programs: req.Programs, Methods: req.Methods, Keyword: req.Keyword},
		Question: req.Question,
	})
}

func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "topic is required"})
		return
	}

	s.run(w, r, s.evaluate, advisor.Request{
		Criteria: advisor.Criteria{Programs: req.Programs, Methods: req.Methods, Keyword: req.Keyword},
		Question: req.Topic,
	})
}

func (s *server) run(w http.ResponseWriter, r *http.Request, p *advisor.Pipeline, req advisor.Request) {
	log := s.log.With(
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("mode", string(p.Mode)),
	)

	res, err := p.Run(r.Context(), s.ds, req, s.completer)
	if err != nil {
		var cerr *completion.Error
		if errors.As(err, &cerr) {
			log.Warn("completion failed", slog.Any("err", err))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		log.Error("pipeline failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	switch res.Status {
	case advisor.StatusSchemaInvalid:
		missing := make([]string, 0, len(res.Missing))
		for _, f := range res.Missing {
			missing = append(missing, string(f))
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "dataset is missing required columns", Missing: missing})
		return
	case advisor.StatusEmpty:
		writeJSON(w, http.StatusOK, adviceResponse{
			Status:  res.Status,
			Mode:    res.Mode,
			Message: "no records match the selected filters",
		})
		return
	}

	resp := adviceResponse{
		Status:       res.Status,
		Mode:         res.Mode,
		Matched:      len(res.View),
		ContextCount: res.Context.Len(),
		Context:      res.Context.String(),
		Stats:        res.Stats,
		Text:         res.Text,
	}
	if res.Verdict != advisor.VerdictNone {
		resp.Verdict = string(res.Verdict)
		resp.VerdictLabel = res.Verdict.Label()
	}
	log.Info("advice generated", slog.Int("matched", resp.Matched), slog.Int("context", resp.ContextCount))
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// parseList accepts both repeated parameters and comma separated values.
func parseList(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
