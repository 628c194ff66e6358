package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"roteiro/internal/audit"
	"roteiro/pkg/prompts"
)

type ChannelType string

const (
	ChannelAuthority ChannelType = "authority"
	ChannelDark      ChannelType = "dark"
)

const (
	defaultVideoLength = "8-12 minutes"
	defaultLanguage    = "English (US)"
	DefaultCTAMarker   = "Quick pause"
)

// ScriptConfig is the user input for one script run.
type ScriptConfig struct {
	ChannelType   ChannelType `json:"channel_type"`
	Topic         string      `json:"topic"`
	Transcription string      `json:"transcription,omitempty"`
	ChannelName   string      `json:"channel_name,omitempty"`
	NarratorName  string      `json:"narrator_name,omitempty"`
	ProductCTA    string      `json:"product_cta,omitempty"`
	SponsorCTA    string      `json:"sponsor_cta,omitempty"`
	Style         string      `json:"style,omitempty"`
	VideoLength   string      `json:"video_length,omitempty"`
	Language      string      `json:"language,omitempty"`
}

func (c ScriptConfig) HasCTA() bool {
	return strings.TrimSpace(c.ProductCTA) != ""
}

func (c ScriptConfig) withDefaults() ScriptConfig {
	if c.ChannelType == "" {
		c.ChannelType = ChannelAuthority
	}
	if c.VideoLength == "" {
		c.VideoLength = defaultVideoLength
	}
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	return c
}

func (c ScriptConfig) Validate() error {
	if strings.TrimSpace(c.Topic) == "" && strings.TrimSpace(c.Transcription) == "" {
		return fmt.Errorf("topic or transcription: %w", ErrEmptyInput)
	}
	if c.ChannelType != "" && c.ChannelType != ChannelAuthority && c.ChannelType != ChannelDark {
		return fmt.Errorf("unknown channel type %q", c.ChannelType)
	}
	return nil
}

// ScriptState is a snapshot of a script run.
type ScriptState struct {
	State
	Config     ScriptConfig `json:"config"`
	Correction *Correction  `json:"correction,omitempty"`
	Styled     string       `json:"styled,omitempty"`
	Formatted  string       `json:"formatted,omitempty"`
	Final      *FinalScript `json:"final,omitempty"`
}

// Narration returns the newest narration text of the run.
func (s ScriptState) Narration() string {
	switch {
	case s.Formatted != "":
		return s.Formatted
	case s.Styled != "":
		return s.Styled
	case s.Correction != nil:
		return s.Correction.Text
	default:
		return ""
	}
}

type ScriptOption func(*ScriptPipeline)

func WithObserver(o Observer) ScriptOption {
	return func(p *ScriptPipeline) { p.observe = o }
}

func WithMaxAttempts(n int) ScriptOption {
	return func(p *ScriptPipeline) { p.maxAttempts = n }
}

func WithCTAMarker(marker string) ScriptOption {
	return func(p *ScriptPipeline) {
		if marker != "" {
			p.ctaMarker = marker
		}
	}
}

func withClock(now func() time.Time) ScriptOption {
	return func(p *ScriptPipeline) { p.now = now }
}

// ScriptPipeline generates a narration script in four dependent steps, then
// audits and corrects it. Style and formatting transforms are applied on
// request after the run completes.
type ScriptPipeline struct {
	gateway     TextGateway
	prompts     *prompts.Prompts
	validator   *audit.Validator
	observe     Observer
	maxAttempts int
	ctaMarker   string
	now         func() time.Time

	run run

	mu         sync.Mutex
	config     ScriptConfig
	correction *Correction
	styled     string
	formatted  string
	final      *FinalScript
}

func NewScriptPipeline(gateway TextGateway, p *prompts.Prompts, validator *audit.Validator, opts ...ScriptOption) *ScriptPipeline {
	sp := &ScriptPipeline{
		gateway:     gateway,
		prompts:     p,
		validator:   validator,
		maxAttempts: DefaultMaxAttempts,
		ctaMarker:   DefaultCTAMarker,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(sp)
	}
	return sp
}

// Run executes the four generation steps and the correction loop. A step
// failure ends the run in error with earlier results kept.
func (p *ScriptPipeline) Run(ctx context.Context, cfg ScriptConfig) (ScriptState, error) {
	if err := cfg.Validate(); err != nil {
		return p.State(), err
	}
	cfg = cfg.withDefaults()

	id, err := p.run.begin()
	if err != nil {
		return p.State(), err
	}

	p.mu.Lock()
	p.config = cfg
	p.correction = nil
	p.styled = ""
	p.formatted = ""
	p.final = nil
	p.mu.Unlock()

	slog.Info("Starting script run", "run", id, "channel_type", cfg.ChannelType, "topic", cfg.Topic)

	if err := p.execute(ctx, cfg); err != nil {
		p.run.fail(err)
		slog.Error("Script run failed", "run", id, "error", err)
		return p.State(), err
	}

	return p.State(), nil
}

func (p *ScriptPipeline) execute(ctx context.Context, cfg ScriptConfig) error {
	system := p.prompts.System.Script
	params := p.params(cfg)

	strategy, err := generate(ctx, p.gateway, system, &p.run, p.observe, 1, step{
		name:   "strategy",
		prompt: func() (string, error) { return p.prompts.RenderStrategy(params) },
	})
	if err != nil {
		return err
	}
	params.Strategy = strategy

	intro, err := generate(ctx, p.gateway, system, &p.run, p.observe, 2, step{
		name:   "introduction",
		prompt: func() (string, error) { return p.prompts.RenderIntroduction(params) },
	})
	if err != nil {
		return err
	}

	body, err := generate(ctx, p.gateway, system, &p.run, p.observe, 3, step{
		name:   "development",
		prompt: func() (string, error) { return p.prompts.RenderDevelopment(params) },
	})
	if err != nil {
		return err
	}

	params.Introduction = intro
	params.Body = body
	script, err := generate(ctx, p.gateway, system, &p.run, p.observe, 4, step{
		name:   "finalize",
		prompt: func() (string, error) { return p.prompts.RenderFinalize(params) },
	})
	if err != nil {
		return err
	}

	correction, err := AttemptCorrection(ctx, script, p.maxAttempts, p.validator, p.fixer(), p.observe)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.correction = &correction
	p.final = newFinalScript(cfg, correction.Text, correction.Attempts, p.validator, p.ctaMarker, p.now())
	p.mu.Unlock()

	p.run.mu.Lock()
	p.run.state.Processing = false
	p.run.state.Complete = true
	p.run.mu.Unlock()

	slog.Info("Script run complete", "attempts", correction.Attempts, "summary", correction.Report.Summary)
	return nil
}

func (p *ScriptPipeline) params(cfg ScriptConfig) prompts.ScriptParams {
	return prompts.ScriptParams{
		ChannelType:   string(cfg.ChannelType),
		Topic:         cfg.Topic,
		Transcription: cfg.Transcription,
		ChannelName:   cfg.ChannelName,
		NarratorName:  cfg.NarratorName,
		ProductCTA:    cfg.ProductCTA,
		SponsorCTA:    cfg.SponsorCTA,
		Style:         cfg.Style,
		VideoLength:   cfg.VideoLength,
		Language:      cfg.Language,
		CTAMarker:     p.ctaMarker,
	}
}

func (p *ScriptPipeline) fixer() Fixer {
	return FixerFunc(func(ctx context.Context, text string, errs []string) (string, error) {
		prompt, err := p.prompts.RenderFix(prompts.FixParams{Script: text, Errors: errs})
		if err != nil {
			return "", fmt.Errorf("render fix prompt: %w", err)
		}
		result, err := p.gateway.GenerateText(ctx, prompt, p.prompts.System.Script)
		if err != nil {
			return "", err
		}
		return result.Text, nil
	})
}

type transform int

const (
	transformStyle transform = iota
	transformFormatting
)

func (t transform) String() string {
	if t == transformFormatting {
		return "formatting"
	}
	return "style"
}

// ApplyStyle rewrites the corrected script in the channel voice. It may run
// once per run.
func (p *ScriptPipeline) ApplyStyle(ctx context.Context) (ScriptState, error) {
	return p.apply(ctx, transformStyle)
}

// ApplyFormatting adds speech markup to the styled script when present,
// otherwise to the corrected script. It may run once per run.
func (p *ScriptPipeline) ApplyFormatting(ctx context.Context) (ScriptState, error) {
	return p.apply(ctx, transformFormatting)
}

// apply runs an optional transform. Failures leave the run state untouched.
func (p *ScriptPipeline) apply(ctx context.Context, t transform) (ScriptState, error) {
	base, err := p.beginTransform(t)
	if err != nil {
		return p.State(), err
	}
	defer p.endTransform()

	id := p.run.snapshot().ID
	p.observe.emit(Event{Kind: EventStepStarted, RunID: id, Name: t.String()})

	text, err := p.transformText(ctx, t, base)
	if err != nil {
		slog.Warn("Optional transform failed", "run", id, "transform", t, "error", err)
		p.observe.emit(Event{Kind: EventNotice, RunID: id, Name: t.String(), Message: fmt.Sprintf("%s failed: %v", t, err)})
		return p.State(), fmt.Errorf("apply %s: %w", t, err)
	}

	p.mu.Lock()
	if t == transformStyle {
		p.styled = text
	} else {
		p.formatted = text
	}
	narration := p.formatted
	if narration == "" {
		narration = p.styled
	}
	p.final = newFinalScript(p.config, narration, p.correction.Attempts, p.validator, p.ctaMarker, p.now())
	p.mu.Unlock()

	p.run.record(text)
	p.observe.emit(Event{Kind: EventStepCompleted, RunID: id, Name: t.String()})
	slog.Info("Transform applied", "run", id, "transform", t)

	return p.State(), nil
}

func (p *ScriptPipeline) beginTransform(t transform) (string, error) {
	p.run.mu.Lock()
	defer p.run.mu.Unlock()

	if p.run.state.Processing {
		return "", ErrRunInProgress
	}
	if !p.run.state.Complete {
		return "", ErrNotComplete
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var base string
	switch t {
	case transformStyle:
		if p.styled != "" {
			return "", fmt.Errorf("style: %w", ErrAlreadyApplied)
		}
		base = p.correction.Text
	case transformFormatting:
		if p.formatted != "" {
			return "", fmt.Errorf("formatting: %w", ErrAlreadyApplied)
		}
		base = p.correction.Text
		if p.styled != "" {
			base = p.styled
		}
	}

	p.run.state.Processing = true
	return base, nil
}

func (p *ScriptPipeline) endTransform() {
	p.run.mu.Lock()
	p.run.state.Processing = false
	p.run.mu.Unlock()
}

func (p *ScriptPipeline) transformText(ctx context.Context, t transform, base string) (string, error) {
	var (
		prompt string
		err    error
	)
	if t == transformStyle {
		prompt, err = p.prompts.RenderStyle(prompts.RewriteParams{Script: base})
	} else {
		prompt, err = p.prompts.RenderFormatting(prompts.RewriteParams{Script: base})
	}
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	result, err := p.gateway.GenerateText(ctx, prompt, "")
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

func (p *ScriptPipeline) State() ScriptState {
	s := ScriptState{State: p.run.snapshot()}

	p.mu.Lock()
	defer p.mu.Unlock()

	s.Config = p.config
	s.Styled = p.styled
	s.Formatted = p.formatted
	if p.correction != nil {
		c := *p.correction
		s.Correction = &c
	}
	if p.final != nil {
		f := *p.final
		s.Final = &f
	}
	return s
}
