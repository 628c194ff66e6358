package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"roteiro/internal/assets"
	"roteiro/internal/gateway"
	"roteiro/internal/llm"
	"roteiro/internal/pipeline"
	"roteiro/internal/settings"
	"roteiro/internal/speech"
	"roteiro/internal/storage"
	"roteiro/pkg/config"
	"roteiro/pkg/prompts"
)

const narration = "The old castle stood alone on the hill."

const segmentsReply = `[
  {"id": "001", "timestampStart": "00:00:00,000", "timestampEnd": "00:00:10,000",
   "textContext": "The old castle", "visualDescription": "castle at dusk", "sourceType": "generate"}
]`

var pngBytes = []byte("\x89PNG\r\n\x1a\n0000")

type scriptedAdapter struct {
	mu      sync.Mutex
	prompts []string
}

func (a *scriptedAdapter) GenerateText(_ context.Context, req llm.TextRequest) (*llm.TextResult, error) {
	a.mu.Lock()
	a.prompts = append(a.prompts, req.Prompt)
	a.mu.Unlock()

	if strings.Contains(req.Prompt, "B-ROLL SEGMENTATION") {
		return &llm.TextResult{Text: segmentsReply}, nil
	}
	return &llm.TextResult{Text: narration}, nil
}

func (a *scriptedAdapter) GenerateImage(_ context.Context, _ llm.ImageRequest) (*llm.Image, error) {
	return &llm.Image{MIMEType: "image/png", Data: pngBytes}, nil
}

func (a *scriptedAdapter) SearchImages(_ context.Context, _ string) ([]llm.Image, error) {
	return nil, nil
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, string) {
	t.Helper()

	s := settings.Defaults()
	s.Keys[settings.ProviderGemini] = "test-key"

	adapter := &scriptedAdapter{}
	gw := gateway.New(s, gateway.Registry{
		settings.ProviderGemini: {
			Capabilities: gateway.CapText | gateway.CapImage | gateway.CapSearch,
			New:          func(context.Context, string) (any, error) { return adapter, nil },
		},
	})

	p, err := prompts.Default()
	if err != nil {
		t.Fatalf("prompts.Default() error = %v", err)
	}

	root := t.TempDir()
	store := storage.NewLocalStore(root)

	return NewService(ServiceOptions{
		Config:   cfg,
		Settings: settings.NewStore(settings.NewFileKV(t.TempDir())),
		Gateway:  gw,
		Prompts:  p,
		Speech:   speech.NewSilent(0),
		Store:    store,
		Exporter: assets.NewExporter(store, nil),
	}), root
}

func TestSessionsEvictOldest(t *testing.T) {
	s := newSessions[int](2)
	s.put("a", 1)
	s.put("b", 2)
	s.put("a", 10)
	s.put("c", 3)

	if _, ok := s.get("a"); ok {
		t.Error("oldest session was not evicted")
	}
	if v, ok := s.get("c"); !ok || v != 3 {
		t.Errorf("get(c) = %d, %v", v, ok)
	}
	if s.len() != 2 {
		t.Errorf("len() = %d, want 2", s.len())
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "Castle Legends", want: "castle_legends"},
		{name: "punctuation", input: "Why?! Castles... (part 2)", want: "why_castles_part_2"},
		{name: "empty", input: "???", want: "untitled"},
		{name: "long", input: strings.Repeat("ab ", 40), want: strings.TrimRight(strings.Repeat("ab_", 17), "_")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slug(tt.input); got != tt.want {
				t.Errorf("slug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRunScriptKeepsSession(t *testing.T) {
	svc, _ := newTestService(t, &config.Config{})
	ctx := context.Background()

	state, err := svc.RunScript(ctx, pipeline.ScriptConfig{Topic: "Castle legends"}, nil)
	if err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}
	if !state.Complete || state.Final == nil {
		t.Fatalf("state = %+v, want complete with artifact", state.State)
	}

	got, err := svc.Script(state.ID)
	if err != nil {
		t.Fatalf("Script() error = %v", err)
	}
	if got.ID != state.ID || got.Final.Content != narration {
		t.Errorf("Script() = %+v", got.State)
	}

	styled, err := svc.ApplyStyle(ctx, state.ID)
	if err != nil {
		t.Fatalf("ApplyStyle() error = %v", err)
	}
	if styled.Styled == "" {
		t.Error("ApplyStyle() left Styled empty")
	}

	if _, err := svc.Script("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Script(missing) error = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.ApplyFormatting(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ApplyFormatting(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestRunScriptRejectsEmptyInput(t *testing.T) {
	svc, _ := newTestService(t, &config.Config{})

	state, err := svc.RunScript(context.Background(), pipeline.ScriptConfig{}, nil)
	if !errors.Is(err, pipeline.ErrEmptyInput) {
		t.Fatalf("RunScript() error = %v, want ErrEmptyInput", err)
	}
	if state.ID != "" || svc.scripts.len() != 0 {
		t.Error("a rejected config still created a session")
	}
}

func TestExportAndNarrateScript(t *testing.T) {
	svc, _ := newTestService(t, &config.Config{})
	ctx := context.Background()

	state, err := svc.RunScript(ctx, pipeline.ScriptConfig{Topic: "Castle legends"}, nil)
	if err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}

	if _, err := svc.ExportScript(ctx, state.ID); err != nil {
		t.Fatalf("ExportScript() error = %v", err)
	}
	audio, err := svc.NarrateScript(ctx, state.ID)
	if err != nil {
		t.Fatalf("NarrateScript() error = %v", err)
	}
	if audio.ContentType != "audio/wav" || !strings.HasSuffix(audio.Key, "narration.wav") {
		t.Errorf("narration = %+v", audio)
	}

	objects, err := svc.Artifacts(ctx, "scripts/castle_legends_")
	if err != nil {
		t.Fatalf("Artifacts() error = %v", err)
	}
	var names []string
	for _, o := range objects {
		names = append(names, o.Key[strings.LastIndex(o.Key, "/")+1:])
	}
	if got := strings.Join(names, ","); got != "final.json,narration.wav,script.txt" {
		t.Errorf("artifacts = %q", got)
	}
}

func TestAutoExport(t *testing.T) {
	cfg := &config.Config{}
	cfg.Output.Export = true
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()

	if _, err := svc.RunScript(ctx, pipeline.ScriptConfig{Topic: "Castles"}, nil); err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}
	objects, err := svc.Artifacts(ctx, "scripts/")
	if err != nil {
		t.Fatalf("Artifacts() error = %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("exported %d objects, want 2", len(objects))
	}
}

func TestNicheSession(t *testing.T) {
	svc, _ := newTestService(t, &config.Config{})
	ctx := context.Background()

	state, err := svc.AnalyzeNiche(ctx, "home baking", nil)
	if err != nil {
		t.Fatalf("AnalyzeNiche() error = %v", err)
	}
	if !state.AwaitingDecision {
		t.Fatal("AwaitingDecision = false after analysis")
	}

	done, err := svc.ChooseStrategy(ctx, state.ID, pipeline.StrategyDark)
	if err != nil {
		t.Fatalf("ChooseStrategy() error = %v", err)
	}
	if !done.Complete || len(done.Results) != 4 {
		t.Errorf("state = %+v", done.State)
	}

	if _, err := svc.ChooseStrategy(ctx, "missing", pipeline.StrategyDark); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ChooseStrategy(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestBRollExport(t *testing.T) {
	svc, _ := newTestService(t, &config.Config{})
	ctx := context.Background()

	res, err := svc.BRoll(ctx, narration, pipeline.BRollConfig{}, true, nil)
	if err != nil {
		t.Fatalf("BRoll() error = %v", err)
	}
	if res.Manifest == "" || len(res.Segments) != 1 {
		t.Fatalf("result = %+v", res)
	}

	objects, err := svc.Artifacts(ctx, "broll/"+res.ID+"/")
	if err != nil {
		t.Fatalf("Artifacts() error = %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("stored %d objects, want image and manifest", len(objects))
	}
}

func TestThumbnailExport(t *testing.T) {
	svc, _ := newTestService(t, &config.Config{})

	res, err := svc.Thumbnail(context.Background(), pipeline.ThumbnailRequest{Prompt: "Red castle"}, true)
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}
	if !strings.HasSuffix(res.Asset, "_red_castle.png") {
		t.Errorf("Asset = %q", res.Asset)
	}
}

func TestUpdateSettings(t *testing.T) {
	svc, _ := newTestService(t, &config.Config{})
	ctx := context.Background()

	current, err := svc.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}

	bad := current.Clone()
	bad.Temperature = 5
	if _, err := svc.UpdateSettings(ctx, bad); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("UpdateSettings() error = %v, want ErrInvalidSettings", err)
	}

	next := current.Clone()
	next.Temperature = 0.2
	next.Keys[settings.ProviderOpenAI] = "sk-new"
	if _, err := svc.UpdateSettings(ctx, next); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	if got := svc.Gateway().Settings().Temperature; got != 0.2 {
		t.Errorf("gateway temperature = %v, want 0.2", got)
	}
	stored, _ := svc.Settings(ctx)
	if stored.Key(settings.ProviderOpenAI) != "sk-new" {
		t.Error("settings were not persisted")
	}
}

func TestMissingCollaborators(t *testing.T) {
	svc := NewService(ServiceOptions{})
	ctx := context.Background()

	if _, err := svc.Artifacts(ctx, ""); !errors.Is(err, ErrNoStore) {
		t.Errorf("Artifacts() error = %v, want ErrNoStore", err)
	}
	if _, err := svc.Synthesize(ctx, speech.Request{Text: "hi"}); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Synthesize() error = %v, want ErrNoSpeech", err)
	}
	if _, err := svc.ExportScript(ctx, "x"); !errors.Is(err, ErrNoStore) {
		t.Errorf("ExportScript() error = %v, want ErrNoStore", err)
	}
}

func TestNewValidator(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.AuditConfig
		text         string
		wantApproved bool
		wantWarnings int
	}{
		{name: "defaults", text: narration, wantApproved: true},
		{
			name: "bannedPhrase",
			cfg:  config.AuditConfig{BannedPhrases: []string{"rival channel"}},
			text: "Unlike the Rival Channel, we read the sources.",
		},
		{
			name:         "keywordRange",
			cfg:          config.AuditConfig{Keyword: "castle", MinKeyword: 3, MaxKeyword: 5},
			text:         narration,
			wantApproved: true,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewValidator(tt.cfg).Audit(tt.text)
			if report.Approved != tt.wantApproved {
				t.Errorf("Approved = %v, want %v (errors %v)", report.Approved, tt.wantApproved, report.Errors)
			}
			if len(report.Warnings) != tt.wantWarnings {
				t.Errorf("Warnings = %v, want %d", report.Warnings, tt.wantWarnings)
			}
		})
	}
}
