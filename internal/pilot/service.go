// Package pilot runs one editor action end to end: prompt, provider, limits and bookkeeping.
package pilot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"privatepilot/internal/actions"
	"privatepilot/internal/crypto"
	"privatepilot/internal/metrics"
	"privatepilot/internal/providers"
	"privatepilot/internal/providers/registry"
	"privatepilot/internal/ratelimit"
	"privatepilot/internal/storage"
)

var (
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrCredentialsDisabled = errors.New("credential storage needs a master key and an enabled store")
)

// Store is the subset of storage the service needs.
type Store interface {
	GetCredential(ctx context.Context, kind string) (storage.Credential, error)
	UpsertCredential(ctx context.Context, kind, encAPIKey string) error
	DeleteCredential(ctx context.Context, kind string) error
	ListCredentials(ctx context.Context) ([]storage.Credential, error)
	RecordGeneration(ctx context.Context, g storage.Generation) (string, error)
}

type Config struct {
	Catalog  *actions.Catalog
	Settings registry.Settings
	// Store and Keyring are optional; without them stored credentials and history are skipped.
	Store   Store
	Keyring *crypto.Keyring
	Limiter ratelimit.Limiter
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type Service struct {
	catalog  *actions.Catalog
	settings registry.Settings
	store    Store
	keyring  *crypto.Keyring
	limiter  ratelimit.Limiter
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Request is one action invocation from the editor.
type Request struct {
	Action string
	Input  actions.Input
	// Provider overrides the configured provider key for this call only.
	Provider string
}

type Result struct {
	ID       string
	Action   string
	Provider string
	Model    string
	Text     string
	// Replace reports whether Text replaces the selection instead of being inserted at the cursor.
	Replace bool
}

func New(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = actions.Builtin()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.Unlimited{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		catalog:  cfg.Catalog,
		settings: cfg.Settings,
		store:    cfg.Store,
		keyring:  cfg.Keyring,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
		metrics:  m,
		now:      cfg.Now,
	}
}

func (s *Service) Catalog() *actions.Catalog { return s.catalog }

// Generate builds the prompt for req, sends it to the selected provider and returns the text.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	def, err := s.catalog.Lookup(req.Action)
	if err != nil {
		return Result{}, err
	}
	prompt, err := s.catalog.Build(def.Name, req.Input)
	if err != nil {
		return Result{}, err
	}

	settings, err := s.resolveSettings(ctx, req.Provider)
	if err != nil {
		return Result{}, err
	}
	kind := providers.ParseKind(settings.Provider)
	provider := registry.Select(settings)
	model := modelOf(provider)

	log := s.logger.With().Str("action", def.Name).Str("provider", string(kind)).Str("model", model).Logger()

	decision, err := s.limiter.Allow(ctx, string(kind), s.now())
	if err != nil {
		return Result{}, fmt.Errorf("check rate limit: %w", err)
	}
	if !decision.Allowed {
		s.metrics.RateLimited.WithLabelValues(string(kind)).Inc()
		log.Warn().Time("reset_at", decision.ResetAt).Msg("generation rate limited")
		return Result{}, fmt.Errorf("%w for %s, retry after %s", ErrRateLimited, kind, decision.ResetAt.Format(time.RFC3339))
	}

	started := s.now()
	text, genErr := provider.Generate(ctx, prompt)
	elapsed := s.now().Sub(started)

	outcome := outcomeOf(genErr)
	s.metrics.Generations.WithLabelValues(string(kind), outcome).Inc()
	s.metrics.GenerationDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())

	rec := storage.Generation{
		Action:      def.Name,
		Provider:    string(kind),
		Model:       model,
		Outcome:     outcome,
		DurationMS:  elapsed.Milliseconds(),
		PromptChars: len(prompt),
		ResultChars: len(text),
		CreatedAt:   started.UTC(),
	}
	var pe *providers.Error
	if errors.As(genErr, &pe) {
		rec.StatusCode = pe.StatusCode
	}
	if genErr != nil {
		rec.Error = providers.Describe(genErr)
	}
	id := s.record(ctx, log, rec)

	if genErr != nil {
		if pe != nil && pe.Kind == providers.KindMalformed {
			log.Debug().Str("body", pe.Body).Msg("malformed provider response")
		}
		log.Error().Err(genErr).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("generation failed")
		return Result{}, genErr
	}
	log.Info().Dur("elapsed", elapsed).Int("result_chars", len(text)).Msg("generation completed")

	return Result{
		ID:       id,
		Action:   def.Name,
		Provider: string(kind),
		Model:    model,
		Text:     text,
		Replace:  def.Replace,
	}, nil
}

// SetCredential seals apiKey and stores it for kind.
func (s *Service) SetCredential(ctx context.Context, kind, apiKey string) error {
	if s.store == nil || s.keyring == nil {
		return ErrCredentialsDisabled
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("api key is empty")
	}
	k := providers.ParseKind(kind)
	sealed, err := s.keyring.SealString(apiKey, credentialLabel(k))
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}
	return s.store.UpsertCredential(ctx, string(k), sealed)
}

func (s *Service) DeleteCredential(ctx context.Context, kind string) error {
	if s.store == nil {
		return ErrCredentialsDisabled
	}
	return s.store.DeleteCredential(ctx, string(providers.ParseKind(kind)))
}

// CredentialInfo describes a stored key without revealing it.
type CredentialInfo struct {
	Kind      string
	UpdatedAt time.Time
	// Stale is set when the key was sealed under a retired master key.
	Stale bool
}

// Credentials lists the stored provider keys.
func (s *Service) Credentials(ctx context.Context) ([]CredentialInfo, error) {
	if s.store == nil || s.keyring == nil {
		return nil, ErrCredentialsDisabled
	}
	creds, err := s.store.ListCredentials(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CredentialInfo, 0, len(creds))
	for _, c := range creds {
		out = append(out, CredentialInfo{
			Kind:      c.Kind,
			UpdatedAt: c.UpdatedAt,
			Stale:     s.keyring.NeedsRotation(c.EncAPIKey),
		})
	}
	return out, nil
}

// resolveSettings applies the per-call provider override and fills an empty API key
// from the credential store. Stored envelopes sealed under a retired key are re-sealed.
func (s *Service) resolveSettings(ctx context.Context, override string) (registry.Settings, error) {
	settings := s.settings
	if strings.TrimSpace(override) != "" {
		settings.Provider = override
	}
	kind := providers.ParseKind(settings.Provider)
	settings.Provider = string(kind)

	if settings.EndpointFor(kind).APIKey != "" || s.store == nil || s.keyring == nil {
		return settings, nil
	}
	cred, err := s.store.GetCredential(ctx, string(kind))
	if errors.Is(err, storage.ErrNotFound) {
		return settings, nil
	}
	if err != nil {
		return registry.Settings{}, fmt.Errorf("load %s credential: %w", kind, err)
	}
	label := credentialLabel(kind)
	key, err := s.keyring.OpenString(cred.EncAPIKey, label)
	if err != nil {
		return registry.Settings{}, fmt.Errorf("decrypt %s credential: %w", kind, err)
	}
	if s.keyring.NeedsRotation(cred.EncAPIKey) {
		rotated, err := s.keyring.Rotate(cred.EncAPIKey, label)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider", string(kind)).Msg("failed to rotate credential")
		} else if err := s.store.UpsertCredential(ctx, string(kind), rotated); err != nil {
			s.logger.Warn().Err(err).Str("provider", string(kind)).Msg("failed to store rotated credential")
		}
	}
	return settings.WithAPIKey(kind, key), nil
}

func (s *Service) record(ctx context.Context, log zerolog.Logger, g storage.Generation) string {
	if s.store == nil {
		return ""
	}
	// recorded even when the caller has cancelled
	id, err := s.store.RecordGeneration(context.WithoutCancel(ctx), g)
	if err != nil {
		log.Warn().Err(err).Msg("failed to record generation")
		return ""
	}
	return id
}

func credentialLabel(kind providers.Kind) string {
	return "provider:" + string(kind)
}

func modelOf(p providers.Provider) string {
	if d, ok := p.(providers.Describer); ok {
		return d.Model()
	}
	return ""
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	if k := providers.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}
