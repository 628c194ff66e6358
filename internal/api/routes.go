package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"roteiro/internal/app"
	"roteiro/internal/audit"
	"roteiro/internal/pipeline"
	"roteiro/internal/settings"
	"roteiro/internal/storage"
)

const maxBodyBytes = 32 << 20

// Backend is the part of app.Service the HTTP surface drives.
type Backend interface {
	Settings(ctx context.Context) (settings.Settings, error)
	UpdateSettings(ctx context.Context, s settings.Settings) (settings.Settings, error)
	Audit(text string) audit.Report

	RunScript(ctx context.Context, cfg pipeline.ScriptConfig, observe pipeline.Observer) (pipeline.ScriptState, error)
	Script(id string) (pipeline.ScriptState, error)
	ApplyStyle(ctx context.Context, id string) (pipeline.ScriptState, error)
	ApplyFormatting(ctx context.Context, id string) (pipeline.ScriptState, error)
	ExportScript(ctx context.Context, id string) ([]storage.Object, error)
	NarrateScript(ctx context.Context, id string) (storage.Object, error)

	AnalyzeNiche(ctx context.Context, input string, observe pipeline.Observer) (pipeline.NicheState, error)
	ChooseStrategy(ctx context.Context, id string, strategy pipeline.Strategy) (pipeline.NicheState, error)
	Niche(id string) (pipeline.NicheState, error)

	TitlesAndDescription(ctx context.Context, transcription string) (*pipeline.TitlesResult, error)
	Themes(ctx context.Context, input string) (string, error)
	Thumbnail(ctx context.Context, req pipeline.ThumbnailRequest, export bool) (*app.ThumbnailResult, error)
	BRoll(ctx context.Context, text string, cfg pipeline.BRollConfig, export bool, observe pipeline.Observer) (*app.BRollResult, error)

	Artifacts(ctx context.Context, prefix string) ([]storage.Object, error)
}

var _ Backend = (*app.Service)(nil)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(BodyLimitMiddleware(maxBodyBytes))

	r.Get("/health", healthHandler(cfg))

	r.Get("/settings", getSettingsHandler(cfg))
	r.Put("/settings", putSettingsHandler(cfg))
	r.Post("/audit", auditHandler(cfg))

	r.Route("/scripts", func(r chi.Router) {
		r.Post("/", createScriptHandler(cfg))
		r.Get("/{id}", getScriptHandler(cfg))
		r.Post("/{id}/style", scriptTransformHandler(cfg.Backend.ApplyStyle))
		r.Post("/{id}/format", scriptTransformHandler(cfg.Backend.ApplyFormatting))
		r.Post("/{id}/export", exportScriptHandler(cfg))
		r.Post("/{id}/narration", narrateScriptHandler(cfg))
	})

	r.Route("/niches", func(r chi.Router) {
		r.Post("/", createNicheHandler(cfg))
		r.Get("/{id}", getNicheHandler(cfg))
		r.Post("/{id}/strategy", chooseStrategyHandler(cfg))
	})

	r.Post("/titles", titlesHandler(cfg))
	r.Post("/themes", themesHandler(cfg))
	r.Post("/thumbnails", thumbnailHandler(cfg))
	r.Post("/broll", brollHandler(cfg))
	r.Get("/artifacts", artifactsHandler(cfg))

	return r
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		status, code := http.StatusBadRequest, "BAD_REQUEST"
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			status, code = http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"
		}
		WriteError(w, status, fmt.Sprintf("invalid request body: %v", err), code)
		return false
	}
	return true
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := cfg.Backend.Settings(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, settingsToResponse(s))
	}
}

// putSettingsHandler decodes a partial record over the current one. A key
// sent back in its masked form keeps the stored credential.
func putSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := cfg.Backend.Settings(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}

		next := current.Clone()
		if !decode(w, r, &next) {
			return
		}
		for p, key := range next.Keys {
			if old := current.Key(p); key != "" && key == settings.MaskKey(old) {
				next.Keys[p] = old
			}
		}

		saved, err := cfg.Backend.UpdateSettings(r.Context(), next)
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, settingsToResponse(saved))
	}
}

func auditHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuditRequest
		if !decode(w, r, &req) {
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Backend.Audit(req.Text))
	}
}

func createScriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.ScriptConfig
		if !decode(w, r, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		state, err := cfg.Backend.RunScript(r.Context(), req, nil)
		if err != nil {
			writeRunErr(w, err, state.ID)
			return
		}
		WriteJSON(w, http.StatusCreated, state)
	}
}

func getScriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := cfg.Backend.Script(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

func scriptTransformHandler(apply func(context.Context, string) (pipeline.ScriptState, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		state, err := apply(r.Context(), id)
		if err != nil {
			writeRunErr(w, err, id)
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

func exportScriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objects, err := cfg.Backend.ExportScript(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ArtifactsResponse{Artifacts: objects})
	}
}

func narrateScriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obj, err := cfg.Backend.NarrateScript(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, obj)
	}
}

func createNicheHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NicheRequest
		if !decode(w, r, &req) {
			return
		}

		state, err := cfg.Backend.AnalyzeNiche(r.Context(), req.Input, nil)
		if err != nil {
			writeRunErr(w, err, state.ID)
			return
		}
		WriteJSON(w, http.StatusCreated, state)
	}
}

func getNicheHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := cfg.Backend.Niche(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

func chooseStrategyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StrategyRequest
		if !decode(w, r, &req) {
			return
		}

		id := chi.URLParam(r, "id")
		state, err := cfg.Backend.ChooseStrategy(r.Context(), id, req.Strategy)
		if err != nil {
			writeRunErr(w, err, id)
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

func titlesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TextRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := cfg.Backend.TitlesAndDescription(r.Context(), req.Text)
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func themesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TextRequest
		if !decode(w, r, &req) {
			return
		}
		themes, err := cfg.Backend.Themes(r.Context(), req.Text)
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ThemesResponse{Themes: themes})
	}
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ThumbnailRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := cfg.Backend.Thumbnail(r.Context(), req.ThumbnailRequest, req.Export)
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func brollHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BRollRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := cfg.Backend.BRoll(r.Context(), req.Text, req.Config, req.Export, nil)
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func artifactsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objects, err := cfg.Backend.Artifacts(r.Context(), r.URL.Query().Get("prefix"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if objects == nil {
			objects = []storage.Object{}
		}
		WriteJSON(w, http.StatusOK, ArtifactsResponse{Artifacts: objects})
	}
}
