package transporthttp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"contentmachine/internal/config"
	"contentmachine/internal/content"
	"contentmachine/internal/logging"
	"contentmachine/internal/machine"
	"contentmachine/internal/metrics"
	"contentmachine/internal/mining"
	"contentmachine/internal/publish"
	"contentmachine/internal/transcript"
)

// PasswordHeader carries the shared dashboard secret.
const PasswordHeader = "X-Dominate-Password"

// Route ceilings, matching the hosting environment's function limits.
const (
	shortTimeout  = 60 * time.Second
	longTimeout   = 120 * time.Second
	socialTimeout = 30 * time.Second
	maxBodyBytes  = 20 << 20
)

// Machine is the generation surface used by the dashboard.
type Machine interface {
	Run(ctx context.Context, in machine.Input) (machine.Result, error)
	GenerateSocial(ctx context.Context, title, body string) (machine.SocialWeek, error)
	AnalyzeClips(ctx context.Context, req machine.ClipsRequest) (machine.ClipReport, error)
	WriteScript(ctx context.Context, req machine.ScriptRequest) (machine.ScriptPackage, error)
	Signals(ctx context.Context, q mining.Query) (machine.SignalReport, error)
}

// Dispatcher publishes items to named destinations.
type Dispatcher interface {
	Publisher(name string) (publish.Publisher, bool)
	Publish(ctx context.Context, item publish.Item, name string) publish.Record
	PublishAll(ctx context.Context, item publish.Item, names ...string) []publish.Record
}

// Scheduler creates social drafts.
type Scheduler interface {
	Configured() bool
	Schedule(ctx context.Context, text, mode string) (publish.Draft, error)
}

// Deps are the collaborators behind the dashboard endpoints. Any of them may be nil,
// in which case the routes needing it answer 500.
type Deps struct {
	Machine    Machine
	Dispatcher Dispatcher
	Scheduler  Scheduler
	Store      *content.Store
	Metrics    *metrics.Metrics
	Logger     logrus.FieldLogger
}

type Server struct {
	password string
	siteURL  string
	deps     Deps
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewServer(cfg config.Config, deps Deps) *Server {
	return &Server{
		password: cfg.DashboardPassword,
		siteURL:  cfg.SiteURL,
		deps:     deps,
		logger:   logging.OrDiscard(deps.Logger),
		now:      time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.health)
	if s.deps.Metrics != nil {
		mux.Handle("/metrics", s.deps.Metrics.Handler())
	}
	mux.Handle("/api/dominate/generate", s.dominate(shortTimeout, s.handleGenerate))
	mux.Handle("/api/dominate/generate-social", s.dominate(shortTimeout, s.handleGenerateSocial))
	mux.Handle("/api/dominate/publish", s.dominate(shortTimeout, s.handlePublish))
	mux.Handle("/api/dominate/crosspost", s.dominate(shortTimeout, s.handleCrosspost))
	mux.Handle("/api/dominate/autopost", s.dominate(socialTimeout, s.handleAutopost))
	mux.Handle("/api/dominate/clips", s.dominate(longTimeout, s.handleClips))
	mux.Handle("/api/dominate/script", s.dominate(longTimeout, s.handleScript))
	mux.Handle("/api/dominate/signals", s.dominate(longTimeout, s.handleSignals))
	mux.HandleFunc("/swagger/openapi.yaml", serveSwaggerYAML)
	mux.HandleFunc("/swagger", serveSwaggerUI)
	mux.HandleFunc("/swagger/", serveSwaggerUI)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dominate guards a dashboard route: POST only, shared secret, body cap and deadline.
func (s *Server) dominate(timeout time.Duration, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !s.authorized(r) {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next(w, r.WithContext(ctx))
	})
}

// authorized rejects every request when no password is configured.
func (s *Server) authorized(r *http.Request) bool {
	if s.password == "" {
		return false
	}
	got := r.Header.Get(PasswordHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.password)) == 1
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON.")
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps a domain error onto a status and envelope.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	entry := s.logger.WithFields(logrus.Fields{"path": r.URL.Path}).WithError(err)

	if raw, ok := machine.RawOutput(err); ok {
		entry.Warn("unparseable completion output")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":      "AI returned output that could not be parsed. Raw output included.",
			"raw_output": raw,
		})
		return
	}

	switch {
	case errors.Is(err, transcript.ErrManualTranscript):
		entry.Info("transcript unavailable")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":                   "Could not fetch transcript. Paste the transcript manually instead.",
			"needs_manual_transcript": true,
		})
	case errors.Is(err, transcript.ErrInvalidVideo):
		s.writeError(w, http.StatusBadRequest, "Invalid YouTube URL.")
	case errors.Is(err, machine.ErrEmptyInput), errors.Is(err, machine.ErrNoTranscript), errors.Is(err, machine.ErrNoPain):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		entry.Warn("request deadline exceeded")
		s.writeError(w, http.StatusInternalServerError, "request timed out")
	default:
		entry.Error("request failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
