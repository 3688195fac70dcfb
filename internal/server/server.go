// Package server exposes the pilot service to editor hosts over local HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"privatepilot/internal/actions"
	"privatepilot/internal/pilot"
	"privatepilot/internal/providers"
	"privatepilot/internal/typing"
)

const maxRequestBytes = 1 << 20

// Generator is the part of pilot.Service the handlers call.
type Generator interface {
	Generate(ctx context.Context, req pilot.Request) (pilot.Result, error)
	Catalog() *actions.Catalog
}

type Config struct {
	Generator   Generator
	Typewriter  typing.Typewriter
	HealthPath  string
	MetricsPath string
	// Metrics defaults to the process-global prometheus handler.
	Metrics http.Handler
	Logger  zerolog.Logger
}

type Server struct {
	gen        Generator
	typewriter typing.Typewriter
	cfg        Config
	logger     zerolog.Logger
	upgrader   websocket.Upgrader
}

func New(cfg Config) *Server {
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/healthz"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}
	return &Server{
		gen:        cfg.Generator,
		typewriter: cfg.Typewriter,
		cfg:        cfg,
		logger:     cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     localOrigin,
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.cfg.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET "+s.cfg.MetricsPath, s.cfg.Metrics)
	mux.HandleFunc("GET /v1/actions", s.handleActions)
	mux.HandleFunc("POST /v1/generate", s.handleGenerate)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	return mux
}

type generateRequest struct {
	Action   string `json:"action"`
	Code     string `json:"code"`
	Language string `json:"language"`
	Question string `json:"question"`
	Context  string `json:"context"`
	Provider string `json:"provider"`
}

func (r generateRequest) pilot() pilot.Request {
	return pilot.Request{
		Action:   r.Action,
		Provider: r.Provider,
		Input: actions.Input{
			Code:     r.Code,
			Language: r.Language,
			Question: r.Question,
			Context:  r.Context,
		},
	}
}

type generateResponse struct {
	ID       string `json:"id,omitempty"`
	Action   string `json:"action"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Text     string `json:"text"`
	Replace  bool   `json:"replace"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
}

type streamFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	*generateResponse
	*errorResponse
}

func (s *Server) handleActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.gen.Catalog().Definitions()})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Kind: "bad_request"})
		return
	}

	res, err := s.gen.Generate(r.Context(), req.pilot())
	if err != nil {
		status, body := mapError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("action", req.Action).Msg("generate request failed")
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxRequestBytes)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	var req generateRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(streamFrame{Type: "error", errorResponse: &errorResponse{Error: "invalid request: " + err.Error(), Kind: "bad_request"}})
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// any further read error means the client went away
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	res, err := s.gen.Generate(ctx, req.pilot())
	if err != nil {
		_, body := mapError(err)
		_ = conn.WriteJSON(streamFrame{Type: "error", errorResponse: &body})
		return
	}

	err = s.typewriter.Emit(ctx, res.Text, func(chunk string) error {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(streamFrame{Type: "chunk", Text: chunk})
	})
	if err != nil {
		s.logger.Debug().Err(err).Msg("stream aborted")
		return
	}
	done := toResponse(res)
	done.Text = ""
	_ = conn.WriteJSON(streamFrame{Type: "done", generateResponse: &done})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func toResponse(res pilot.Result) generateResponse {
	return generateResponse{
		ID:       res.ID,
		Action:   res.Action,
		Provider: res.Provider,
		Model:    res.Model,
		Text:     res.Text,
		Replace:  res.Replace,
	}
}

// mapError picks the HTTP status and JSON body for a failed generation.
func mapError(err error) (int, errorResponse) {
	body := errorResponse{Error: providers.Describe(err)}
	var pe *providers.Error
	if errors.As(err, &pe) {
		body.StatusCode = pe.StatusCode
	}
	switch {
	case errors.Is(err, actions.ErrUnknownAction),
		errors.Is(err, actions.ErrNoSelection),
		errors.Is(err, actions.ErrNoQuestion):
		body.Kind = "bad_request"
		return http.StatusBadRequest, body
	case errors.Is(err, pilot.ErrRateLimited):
		body.Kind = "rate_limited"
		return http.StatusTooManyRequests, body
	case errors.Is(err, providers.ErrRejected), errors.Is(err, providers.ErrMalformedResponse):
		body.Kind = providers.KindOf(err).String()
		return http.StatusBadGateway, body
	case errors.Is(err, providers.ErrUnreachable):
		body.Kind = providers.KindOf(err).String()
		return http.StatusServiceUnavailable, body
	default:
		body.Kind = "internal"
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// localOrigin accepts non-browser clients and pages served from the loopback interface.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.HasPrefix(u.Scheme, "vscode") {
		return true
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
