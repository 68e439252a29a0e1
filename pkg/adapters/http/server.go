package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"time"

	"github.com/aretw0/xplanning"
	"github.com/aretw0/xplanning/internal/presentation/report"
	"github.com/aretw0/xplanning/pkg/analysis"
	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/modelfile"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxBodyBytes bounds the size of an uploaded model.
const DefaultMaxBodyBytes = 4 << 20

// Explainer is the part of the library the server drives.
type Explainer interface {
	SolveAndExplain(ctx context.Context, x *mdp.XMDP) (*analysis.Explanation, error)
}

var _ Explainer = (*xplanning.Explainer)(nil)

// Server serves model validation and explanations over HTTP.
type Server struct {
	explainer Explainer
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	maxBody   int64
	timeout   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer exposes the metrics of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithMaxBodyBytes bounds request bodies; n <= 0 keeps the default.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithTimeout bounds the time spent on one explanation; zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewHandler creates the HTTP handler for explainer.
func NewHandler(explainer Explainer, opts ...Option) http.Handler {
	s := &Server{
		explainer: explainer,
		maxBody:   DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.Health)
	r.Post("/model", s.Model)
	r.Post("/explain", s.Explain)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": xplanning.Version})
}

// ModelSummary describes a model that was built successfully.
type ModelSummary struct {
	Name       string   `json:"name"`
	Criterion  string   `json:"criterion"`
	States     int      `json:"states"`
	Actions    []string `json:"actions"`
	QFunctions []string `json:"qfunctions"`
	Objective  string   `json:"objective"`
}

// Model handles POST /model: it builds the uploaded model and summarizes it.
func (s *Server) Model(w http.ResponseWriter, r *http.Request) {
	f, x, ok := s.readModel(w, r)
	if !ok {
		return
	}

	summary := ModelSummary{
		Name:      f.Name,
		Criterion: string(x.Criterion()),
		States:    x.StateSpace().Size(),
		Objective: x.CostFunction().Name(),
	}
	seen := make(map[string]bool)
	for _, d := range x.ActionSpace().Definitions() {
		for _, a := range d.Actions() {
			if !seen[a.ID()] {
				seen[a.ID()] = true
				summary.Actions = append(summary.Actions, a.ID())
			}
		}
	}
	sort.Strings(summary.Actions)
	for _, q := range x.QSpace().All() {
		summary.QFunctions = append(summary.QFunctions, q.Name())
	}
	writeJSON(w, http.StatusOK, summary)
}

// DecisionRow is one state-action pair of a policy.
type DecisionRow struct {
	State  map[string]domain.Value `json:"state"`
	Action string                  `json:"action"`
}

// ExplainResponse is the JSON answer of /explain.
type ExplainResponse struct {
	*analysis.Explanation
	Policy []DecisionRow `json:"policy"`
}

// Explain handles POST /explain. The explanation is JSON unless the query
// asks for ?format=markdown.
func (s *Server) Explain(w http.ResponseWriter, r *http.Request) {
	_, x, ok := s.readModel(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	exp, err := s.explainer.SolveAndExplain(ctx, x)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, report.Markdown(exp))
		return
	}
	writeJSON(w, http.StatusOK, ExplainResponse{Explanation: exp, Policy: rows(exp.Solution.Policy)})
}

func rows(p *policy.Policy) []DecisionRow {
	if p == nil {
		return nil
	}
	out := make([]DecisionRow, 0, p.Len())
	for _, d := range p.Decisions() {
		out = append(out, DecisionRow{State: d.State.Map(), Action: d.Action.ID()})
	}
	return out
}

// readModel parses and builds the body; on failure it answers the request.
func (s *Server) readModel(w http.ResponseWriter, r *http.Request) (*modelfile.File, *mdp.XMDP, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err, nil)
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, err, nil)
		return nil, nil, false
	}

	f, err := modelfile.Parse(data, formatOf(r))
	if err == nil {
		var x *mdp.XMDP
		if x, err = f.Build(); err == nil {
			return f, x, true
		}
	}
	s.logger.Info("rejected model", "error", err, "request_id", middleware.GetReqID(r.Context()))
	writeError(w, http.StatusBadRequest, err, modelfile.ValidationErrors(err))
	return nil, nil, false
}

// formatOf reads the model format from ?input or Content-Type; YAML by default.
func formatOf(r *http.Request) modelfile.Format {
	if f := r.URL.Query().Get("input"); f != "" {
		return modelfile.Format(f)
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		return modelfile.FormatJSON
	}
	return modelfile.FormatYAML
}

// fail maps an explanation error to a status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var oe *ports.OracleError
	switch {
	case errors.Is(err, ports.ErrNoSolution):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	case errors.As(err, &oe):
		status = http.StatusBadGateway
	}

	level := slog.LevelWarn
	if status == http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "explanation failed",
		"error", err, "status", status, "request_id", middleware.GetReqID(r.Context()))
	writeError(w, status, err, nil)
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error, details []error) {
	body := errorBody{Error: err.Error()}
	for _, d := range details {
		body.Details = append(body.Details, d.Error())
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
