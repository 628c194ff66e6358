package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"roteiro/internal/secrets"
	"roteiro/internal/settings"
	"roteiro/internal/speech"
)

const (
	defaultConfigPath      = "config.yaml"
	defaultPromptsPath     = "prompts.yaml"
	defaultSettingsBackend = BackendFile
	defaultSettingsPath    = "./.roteiro"
	defaultOutputDir       = "./output"
	defaultGCSPrefix       = "roteiro"
	defaultCTAMarker       = "Quick pause"
	defaultMaxAttempts     = 2
	defaultSearchCount     = 5
	defaultServerAddr      = ":8080"
	defaultShutdownTimeout = 10 * time.Second
	defaultHTTPTimeout     = 180 * time.Second
	defaultMaxRetries      = 3
	defaultInitialDelay    = 500 * time.Millisecond
	defaultMaxDelay        = 5 * time.Second
	defaultWordsPerMinute  = 150
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// keyEnv maps each provider to the environment variables (and secret names)
// its credential is read from, in priority order.
var keyEnv = map[settings.Provider][]string{
	settings.ProviderGemini:    {"GEMINI_API_KEY"},
	settings.ProviderOpenAI:    {"OPENAI_API_KEY"},
	settings.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	settings.ProviderDeepSeek:  {"DEEPSEEK_API_KEY"},
	settings.ProviderGrok:      {"GROK_API_KEY", "XAI_API_KEY"},
	settings.ProviderPoe:       {"POE_API_KEY"},
	settings.ProviderGroq:      {"GROQ_API_KEY"},
	settings.ProviderGoogle:    {"GOOGLE_SEARCH_API_KEY"},
}

const elevenLabsKeyEnv = "ELEVENLABS_API_KEY"

// KeyEnvName returns the primary environment variable for a provider's
// credential.
func KeyEnvName(p settings.Provider) string {
	if names := keyEnv[p]; len(names) > 0 {
		return names[0]
	}
	return ""
}

type Config struct {
	Keys                 map[settings.Provider]string `yaml:"-"`
	ElevenLabsAPIKey     string                       `yaml:"-"`
	GoogleSearchEngineID string                       `yaml:"-"`
	GCPProject           string                       `yaml:"-"`
	GCSBucket            string                       `yaml:"-"`

	Settings   SettingsConfig   `yaml:"settings"`
	Prompts    PromptsConfig    `yaml:"prompts"`
	Output     OutputConfig     `yaml:"output"`
	GCS        GCSConfig        `yaml:"gcs"`
	Secrets    SecretsConfig    `yaml:"secrets"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Audit      AuditConfig      `yaml:"audit"`
	Search     SearchConfig     `yaml:"search"`
	Server     ServerConfig     `yaml:"server"`
	HTTP       HTTPConfig       `yaml:"http"`
}

type SettingsConfig struct {
	Backend string `yaml:"backend"` // "file" or "sqlite"
	Path    string `yaml:"path"`
}

type PromptsConfig struct {
	Path string `yaml:"path"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
	// Export writes every finished artifact to the store without asking.
	Export bool `yaml:"export"`
}

type GCSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
}

type SecretsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Project string `yaml:"project"`
}

type ElevenLabsConfig struct {
	speech.Voice   `yaml:",inline"`
	BaseURL        string  `yaml:"base_url"`
	WordsPerMinute float64 `yaml:"words_per_minute"`
}

type AuditConfig struct {
	CTAMarker   string `yaml:"cta_marker"`
	MaxAttempts int    `yaml:"max_attempts"`
	Keyword     string `yaml:"keyword"`
	MinKeyword  int    `yaml:"min_keyword"`
	MaxKeyword  int    `yaml:"max_keyword"`

	// BannedPhrases are rejected like placeholders, e.g. competitor names.
	BannedPhrases []string `yaml:"banned_phrases"`
}

type SearchConfig struct {
	Count int `yaml:"count"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// Load reads .env, the environment and config.yaml (or $ROTEIRO_CONFIG),
// then fills missing credentials from Secret Manager when enabled. Only a
// malformed config file or a failing secret lookup is an error.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Keys:                 make(map[settings.Provider]string, len(keyEnv)),
		ElevenLabsAPIKey:     os.Getenv(elevenLabsKeyEnv),
		GoogleSearchEngineID: os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),
		GCPProject:           os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GCSBucket:            os.Getenv("GCS_BUCKET"),
	}
	for provider, names := range keyEnv {
		cfg.Keys[provider] = firstEnv(names...)
	}

	if err := loadYAMLConfig(cfg, getEnvOrDefault("ROTEIRO_CONFIG", defaultConfigPath)); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if cfg.Secrets.Enabled {
		if err := resolveSecrets(ctx, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No config file found, using defaults", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func resolveSecrets(ctx context.Context, cfg *Config) error {
	resolver, err := secrets.NewResolver(ctx, cfg.Secrets.Project)
	if err != nil {
		return err
	}
	defer func() { _ = resolver.Close() }()

	return fillSecrets(ctx, resolver, cfg)
}

type secretFiller interface {
	Fill(ctx context.Context, targets map[string]*string) error
}

// fillSecrets resolves every empty credential by secret name. Providers
// with several env names use the first one as the secret name.
func fillSecrets(ctx context.Context, resolver secretFiller, cfg *Config) error {
	targets := map[string]*string{elevenLabsKeyEnv: &cfg.ElevenLabsAPIKey}
	for provider, names := range keyEnv {
		v := cfg.Keys[provider]
		targets[names[0]] = &v
	}

	if err := resolver.Fill(ctx, targets); err != nil {
		return fmt.Errorf("resolve secrets: %w", err)
	}

	for provider, names := range keyEnv {
		cfg.Keys[provider] = *targets[names[0]]
	}
	return nil
}

func applyDefaults(cfg *Config) {
	applySettingsDefaults(cfg)
	applyPromptsDefaults(cfg)
	applyOutputDefaults(cfg)
	applyGCSDefaults(cfg)
	applySecretsDefaults(cfg)
	applyElevenLabsDefaults(cfg)
	applyAuditDefaults(cfg)
	applySearchDefaults(cfg)
	applyServerDefaults(cfg)
	applyHTTPDefaults(cfg)
}

func applySettingsDefaults(cfg *Config) {
	if cfg.Settings.Backend == "" {
		cfg.Settings.Backend = defaultSettingsBackend
	}
	if cfg.Settings.Path == "" {
		cfg.Settings.Path = defaultSettingsPath
	}
}

func applyPromptsDefaults(cfg *Config) {
	if cfg.Prompts.Path == "" {
		cfg.Prompts.Path = defaultPromptsPath
	}
}

func applyOutputDefaults(cfg *Config) {
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = defaultOutputDir
	}
}

func applyGCSDefaults(cfg *Config) {
	if cfg.GCS.Bucket == "" {
		cfg.GCS.Bucket = cfg.GCSBucket
	}
	if cfg.GCS.Prefix == "" {
		cfg.GCS.Prefix = defaultGCSPrefix
	}
}

func applySecretsDefaults(cfg *Config) {
	if cfg.Secrets.Project == "" {
		cfg.Secrets.Project = cfg.GCPProject
	}
}

func applyElevenLabsDefaults(cfg *Config) {
	def := speech.DefaultVoice()
	v := &cfg.ElevenLabs.Voice
	if v.ID == "" {
		v.ID = def.ID
	}
	if v.Model == "" {
		v.Model = def.Model
	}
	if v.Stability == 0 {
		v.Stability = def.Stability
	}
	if v.SimilarityBoost == 0 {
		v.SimilarityBoost = def.SimilarityBoost
	}
	if cfg.ElevenLabs.WordsPerMinute == 0 {
		cfg.ElevenLabs.WordsPerMinute = defaultWordsPerMinute
	}
}

func applyAuditDefaults(cfg *Config) {
	if cfg.Audit.CTAMarker == "" {
		cfg.Audit.CTAMarker = defaultCTAMarker
	}
	if cfg.Audit.MaxAttempts == 0 {
		cfg.Audit.MaxAttempts = defaultMaxAttempts
	}
}

func applySearchDefaults(cfg *Config) {
	if cfg.Search.Count == 0 {
		cfg.Search.Count = defaultSearchCount
	}
}

func applyServerDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultServerAddr
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}
}

func applyHTTPDefaults(cfg *Config) {
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = defaultHTTPTimeout
	}
	if cfg.HTTP.MaxRetries == 0 {
		cfg.HTTP.MaxRetries = defaultMaxRetries
	}
	if cfg.HTTP.InitialDelay == 0 {
		cfg.HTTP.InitialDelay = defaultInitialDelay
	}
	if cfg.HTTP.MaxDelay == 0 {
		cfg.HTTP.MaxDelay = defaultMaxDelay
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
