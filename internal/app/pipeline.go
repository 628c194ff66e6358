package app

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"roteiro/internal/pipeline"
	"roteiro/internal/speech"
	"roteiro/internal/storage"
)

// observer logs every event and forwards it to extra when set.
func (s *Service) observer(extra pipeline.Observer) pipeline.Observer {
	return func(e pipeline.Event) {
		slog.Debug("Pipeline event", "kind", e.Kind, "run", e.RunID, "step", e.Step, "name", e.Name, "message", e.Message)
		if extra != nil {
			extra(e)
		}
	}
}

func (s *Service) newScriptPipeline(observe pipeline.Observer) *pipeline.ScriptPipeline {
	opts := []pipeline.ScriptOption{
		pipeline.WithObserver(s.observer(observe)),
		pipeline.WithCTAMarker(s.cfg.Audit.CTAMarker),
	}
	if s.cfg.Audit.MaxAttempts > 0 {
		opts = append(opts, pipeline.WithMaxAttempts(s.cfg.Audit.MaxAttempts))
	}
	return pipeline.NewScriptPipeline(s.gateway, s.prompts, s.validator, opts...)
}

// RunScript starts a new script session and blocks until its base run ends.
// The session is kept even when the run fails so its partial results can
// be inspected.
func (s *Service) RunScript(ctx context.Context, cfg pipeline.ScriptConfig, observe pipeline.Observer) (pipeline.ScriptState, error) {
	p := s.newScriptPipeline(observe)

	state, err := p.Run(ctx, cfg)
	if state.ID != "" {
		s.scripts.put(state.ID, p)
	}
	if err != nil {
		return state, err
	}

	s.autoExport(ctx, state.ID)
	return state, nil
}

func (s *Service) Script(id string) (pipeline.ScriptState, error) {
	p, ok := s.scripts.get(id)
	if !ok {
		return pipeline.ScriptState{}, fmt.Errorf("script %s: %w", id, ErrSessionNotFound)
	}
	return p.State(), nil
}

func (s *Service) ApplyStyle(ctx context.Context, id string) (pipeline.ScriptState, error) {
	return s.transform(ctx, id, (*pipeline.ScriptPipeline).ApplyStyle)
}

func (s *Service) ApplyFormatting(ctx context.Context, id string) (pipeline.ScriptState, error) {
	return s.transform(ctx, id, (*pipeline.ScriptPipeline).ApplyFormatting)
}

func (s *Service) transform(ctx context.Context, id string, apply func(*pipeline.ScriptPipeline, context.Context) (pipeline.ScriptState, error)) (pipeline.ScriptState, error) {
	p, ok := s.scripts.get(id)
	if !ok {
		return pipeline.ScriptState{}, fmt.Errorf("script %s: %w", id, ErrSessionNotFound)
	}

	state, err := apply(p, ctx)
	if err != nil {
		return state, err
	}

	s.autoExport(ctx, id)
	return state, nil
}

func (s *Service) autoExport(ctx context.Context, id string) {
	if !s.cfg.Output.Export || s.exporter == nil {
		return
	}
	if _, err := s.ExportScript(ctx, id); err != nil {
		slog.Warn("Script export failed", "run", id, "error", err)
	}
}

// ExportScript stores the final artifact and its narration text under
// scripts/<topic>_<id>/.
func (s *Service) ExportScript(ctx context.Context, id string) ([]storage.Object, error) {
	if s.exporter == nil {
		return nil, ErrNoStore
	}
	state, err := s.Script(id)
	if err != nil {
		return nil, err
	}
	if state.Final == nil {
		return nil, fmt.Errorf("script %s: %w", id, pipeline.ErrNotComplete)
	}

	dir := scriptDir(state)
	artifact, err := s.exporter.ExportJSON(ctx, path.Join(dir, "final.json"), state.Final)
	if err != nil {
		return nil, err
	}
	narration, err := s.exporter.ExportText(ctx, path.Join(dir, "script.txt"), state.Final.Content)
	if err != nil {
		return nil, err
	}

	slog.Info("Script exported", "run", id, "location", artifact.Location)
	return []storage.Object{artifact, narration}, nil
}

// NarrateScript synthesizes the newest narration of a run and stores the
// audio next to the exported script.
func (s *Service) NarrateScript(ctx context.Context, id string) (storage.Object, error) {
	if s.store == nil {
		return storage.Object{}, ErrNoStore
	}
	state, err := s.Script(id)
	if err != nil {
		return storage.Object{}, err
	}
	text := state.Narration()
	if text == "" {
		return storage.Object{}, fmt.Errorf("script %s: %w", id, pipeline.ErrNotComplete)
	}

	audio, err := s.Synthesize(ctx, speech.Request{Text: text, StripSSML: true})
	if err != nil {
		return storage.Object{}, err
	}

	contentType, ext := audioType(audio)
	return s.store.Save(ctx, path.Join(scriptDir(state), "narration"+ext), audio, contentType)
}

func (s *Service) Synthesize(ctx context.Context, req speech.Request) ([]byte, error) {
	if s.speech == nil {
		return nil, ErrNoSpeech
	}
	slog.Info("Synthesizing narration", "estimated", speech.EstimateDuration(req.Text, s.cfg.ElevenLabs.WordsPerMinute).Round(time.Second))
	return s.speech.Synthesize(ctx, req)
}

// AnalyzeNiche starts a niche session and runs the three analysis steps.
func (s *Service) AnalyzeNiche(ctx context.Context, input string, observe pipeline.Observer) (pipeline.NicheState, error) {
	p := pipeline.NewNichePipeline(s.gateway, s.prompts, s.observer(observe))

	state, err := p.Analyze(ctx, input)
	if state.ID != "" {
		s.niches.put(state.ID, p)
	}
	return state, err
}

func (s *Service) ChooseStrategy(ctx context.Context, id string, strategy pipeline.Strategy) (pipeline.NicheState, error) {
	p, ok := s.niches.get(id)
	if !ok {
		return pipeline.NicheState{}, fmt.Errorf("niche %s: %w", id, ErrSessionNotFound)
	}
	return p.Choose(ctx, strategy)
}

func (s *Service) Niche(id string) (pipeline.NicheState, error) {
	p, ok := s.niches.get(id)
	if !ok {
		return pipeline.NicheState{}, fmt.Errorf("niche %s: %w", id, ErrSessionNotFound)
	}
	return p.State(), nil
}

func (s *Service) generators() *pipeline.Generators {
	return pipeline.NewGenerators(s.gateway, s.prompts)
}

func (s *Service) TitlesAndDescription(ctx context.Context, transcription string) (*pipeline.TitlesResult, error) {
	return s.generators().TitlesAndDescription(ctx, transcription)
}

func (s *Service) Themes(ctx context.Context, input string) (string, error) {
	return s.generators().Themes(ctx, input)
}

// ThumbnailResult adds the stored location when the image was exported.
type ThumbnailResult struct {
	*pipeline.ThumbnailResult
	Asset string `json:"asset,omitempty"`
}

func (s *Service) Thumbnail(ctx context.Context, req pipeline.ThumbnailRequest, export bool) (*ThumbnailResult, error) {
	res, err := s.generators().Thumbnail(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &ThumbnailResult{ThumbnailResult: res}
	if !export && !s.cfg.Output.Export {
		return out, nil
	}
	if s.exporter == nil {
		return out, ErrNoStore
	}

	key := path.Join("thumbnails", time.Now().UTC().Format("20060102_150405")+"_"+slug(res.Prompt))
	obj, err := s.exporter.ExportImage(ctx, key, *res.Image)
	if err != nil {
		return out, err
	}
	out.Asset = obj.Location
	return out, nil
}

// BRollResult is one B-Roll run. Manifest is set when the segments were
// exported.
type BRollResult struct {
	ID       string             `json:"id"`
	Segments []pipeline.Segment `json:"segments"`
	Manifest string             `json:"manifest,omitempty"`
}

func (s *Service) BRoll(ctx context.Context, text string, cfg pipeline.BRollConfig, export bool, observe pipeline.Observer) (*BRollResult, error) {
	creator := pipeline.NewBRollCreator(s.gateway, s.prompts, s.observer(observe))

	segments, err := creator.Create(ctx, text, cfg)
	if err != nil {
		return nil, err
	}

	res := &BRollResult{ID: uuid.NewString(), Segments: segments}
	if !export && !s.cfg.Output.Export {
		return res, nil
	}
	if s.exporter == nil {
		return res, ErrNoStore
	}

	obj, err := s.exporter.ExportBRoll(ctx, res.ID, segments)
	if err != nil {
		return res, err
	}
	res.Manifest = obj.Location
	return res, nil
}

// Artifacts lists stored objects under prefix.
func (s *Service) Artifacts(ctx context.Context, prefix string) ([]storage.Object, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.List(ctx, prefix)
}
