package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"roteiro/internal/assets"
	"roteiro/internal/audit"
	"roteiro/internal/gateway"
	"roteiro/internal/settings"
	"roteiro/internal/speech"
	"roteiro/internal/speech/elevenlabs"
	"roteiro/internal/storage"
	"roteiro/pkg/config"
	"roteiro/pkg/httputil"
	"roteiro/pkg/prompts"
)

type BuildResult struct {
	Service *Service
	closers []io.Closer
}

// Close releases the settings database and the bucket client.
func (r *BuildResult) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func BuildService(ctx context.Context, cfg *config.Config) (*BuildResult, error) {
	result := &BuildResult{}

	p, err := prompts.LoadFrom(cfg.Prompts.Path)
	if err != nil {
		return nil, err
	}

	kv, err := newSettingsKV(cfg.Settings)
	if err != nil {
		return nil, err
	}
	if c, ok := kv.(io.Closer); ok {
		result.closers = append(result.closers, c)
	}

	settingsStore := settings.NewStore(kv, settings.WithFallbackKeys(cfg.Keys))
	current, err := settingsStore.Load(ctx)
	if err != nil {
		_ = result.Close()
		return nil, err
	}

	httpClient := httputil.NewClient(cfg.HTTP.Timeout, httputil.RetryConfig{
		MaxRetries:   cfg.HTTP.MaxRetries,
		InitialDelay: cfg.HTTP.InitialDelay,
		MaxDelay:     cfg.HTTP.MaxDelay,
	})

	// Provider failures reach the caller unretried; only speech and asset
	// downloads go through the retrying transport.
	gw := gateway.New(current, gateway.DefaultRegistry(gateway.RegistryOptions{
		SearchEngineID: cfg.GoogleSearchEngineID,
		SearchCount:    cfg.Search.Count,
		HTTPClient:     &http.Client{Timeout: cfg.HTTP.Timeout},
	}))

	synth, err := newSynthesizer(cfg, httpClient)
	if err != nil {
		_ = result.Close()
		return nil, err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		_ = result.Close()
		return nil, err
	}
	if c, ok := store.(io.Closer); ok {
		result.closers = append(result.closers, c)
	}

	result.Service = NewService(ServiceOptions{
		Config:    cfg,
		Settings:  settingsStore,
		Gateway:   gw,
		Prompts:   p,
		Validator: NewValidator(cfg.Audit),
		Speech:    synth,
		Store:     store,
		Exporter:  assets.NewExporter(store, httpClient),
	})

	slog.Debug("Service built",
		"settings_backend", cfg.Settings.Backend,
		"text_provider", current.TextProvider,
		"gcs", cfg.GCS.Enabled,
	)
	return result, nil
}

// NewValidator builds the script validator with the configured keyword
// range and banned phrases.
func NewValidator(cfg config.AuditConfig) *audit.Validator {
	var opts []audit.Option
	if cfg.Keyword != "" {
		opts = append(opts, audit.WithKeyword(cfg.Keyword, cfg.MinKeyword, cfg.MaxKeyword))
	}
	if rule, ok := audit.PhraseRule(cfg.BannedPhrases); ok {
		opts = append(opts, audit.WithRules(rule))
	}
	return audit.New(opts...)
}

func newSettingsKV(cfg config.SettingsConfig) (settings.KV, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		dbPath := cfg.Path
		if filepath.Ext(dbPath) == "" {
			dbPath = filepath.Join(dbPath, "settings.db")
		}
		return settings.NewSQLiteKV(dbPath)
	case config.BackendFile, "":
		return settings.NewFileKV(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}

func newSynthesizer(cfg *config.Config, httpClient *http.Client) (speech.Synthesizer, error) {
	if cfg.ElevenLabsAPIKey == "" {
		slog.Debug("No ElevenLabs key, narration will be silent")
		return speech.NewSilent(cfg.ElevenLabs.WordsPerMinute), nil
	}
	return elevenlabs.NewClient(elevenlabs.Config{
		APIKeys:    []string{cfg.ElevenLabsAPIKey},
		Voice:      cfg.ElevenLabs.Voice,
		BaseURL:    cfg.ElevenLabs.BaseURL,
		HTTPClient: httpClient,
	})
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if !cfg.GCS.Enabled {
		return storage.NewLocalStore(cfg.Output.Dir), nil
	}
	return storage.NewGCSStore(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
}
