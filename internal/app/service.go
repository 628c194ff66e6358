package app

import (
	"context"
	"fmt"
	"log/slog"

	"roteiro/internal/assets"
	"roteiro/internal/audit"
	"roteiro/internal/gateway"
	"roteiro/internal/pipeline"
	"roteiro/internal/settings"
	"roteiro/internal/speech"
	"roteiro/internal/storage"
	"roteiro/pkg/config"
	"roteiro/pkg/prompts"
)

// Service owns the long-lived collaborators and the in-memory run sessions
// shared by the CLI and the HTTP server.
type Service struct {
	cfg       *config.Config
	settings  *settings.Store
	gateway   *gateway.Gateway
	prompts   *prompts.Prompts
	validator *audit.Validator
	speech    speech.Synthesizer
	store     storage.Store
	exporter  *assets.Exporter

	scripts *sessions[*pipeline.ScriptPipeline]
	niches  *sessions[*pipeline.NichePipeline]
}

type ServiceOptions struct {
	Config    *config.Config
	Settings  *settings.Store
	Gateway   *gateway.Gateway
	Prompts   *prompts.Prompts
	Validator *audit.Validator
	Speech    speech.Synthesizer
	Store     storage.Store
	Exporter  *assets.Exporter
}

func NewService(opts ServiceOptions) *Service {
	validator := opts.Validator
	if validator == nil {
		validator = audit.New()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Service{
		cfg:       cfg,
		settings:  opts.Settings,
		gateway:   opts.Gateway,
		prompts:   opts.Prompts,
		validator: validator,
		speech:    opts.Speech,
		store:     opts.Store,
		exporter:  opts.Exporter,
		scripts:   newSessions[*pipeline.ScriptPipeline](maxSessions),
		niches:    newSessions[*pipeline.NichePipeline](maxSessions),
	}
}

func (s *Service) Config() *config.Config { return s.cfg }
func (s *Service) Gateway() *gateway.Gateway { return s.gateway }
func (s *Service) Prompts() *prompts.Prompts { return s.prompts }
func (s *Service) Validator() *audit.Validator { return s.validator }
func (s *Service) Speech() speech.Synthesizer { return s.speech }
func (s *Service) Store() storage.Store { return s.store }
func (s *Service) Exporter() *assets.Exporter { return s.exporter }

// Settings returns the persisted settings merged over the defaults.
func (s *Service) Settings(ctx context.Context) (settings.Settings, error) {
	if s.settings == nil {
		return s.gateway.Settings(), nil
	}
	return s.settings.Load(ctx)
}

// UpdateSettings validates, persists and hands the record to the gateway.
// Cached adapters are dropped so new credentials apply to the next call.
func (s *Service) UpdateSettings(ctx context.Context, next settings.Settings) (settings.Settings, error) {
	next.Normalize()
	if err := next.Validate(); err != nil {
		return settings.Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if s.settings != nil {
		if err := s.settings.Save(ctx, next); err != nil {
			return settings.Settings{}, err
		}
	}
	s.gateway.ReplaceSettings(next)
	slog.Info("Settings updated", "text", next.TextProvider, "image", next.ImageProvider, "search", next.SearchProvider)
	return next, nil
}

// Audit runs the validator with the configured keyword range.
func (s *Service) Audit(text string) audit.Report {
	return s.validator.Audit(text)
}
