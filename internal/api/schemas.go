package api

import (
	"roteiro/internal/pipeline"
	"roteiro/internal/settings"
	"roteiro/internal/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// ID names the run the failure belongs to, when one was created.
	ID string `json:"id,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

// SettingsResponse never carries raw credentials. Keys holds a masked hint
// per provider and Configured tells which providers have one.
type SettingsResponse struct {
	settings.Settings
	Configured map[settings.Provider]bool `json:"configured"`
}

type AuditRequest struct {
	Text string `json:"text"`
}

type NicheRequest struct {
	Input string `json:"input"`
}

type StrategyRequest struct {
	Strategy pipeline.Strategy `json:"strategy"`
}

type TextRequest struct {
	Text string `json:"text"`
}

type ThemesResponse struct {
	Themes string `json:"themes"`
}

type ThumbnailRequest struct {
	pipeline.ThumbnailRequest
	Export bool `json:"export,omitempty"`
}

type BRollRequest struct {
	Text   string               `json:"text"`
	Config pipeline.BRollConfig `json:"config"`
	Export bool                 `json:"export,omitempty"`
}

type ArtifactsResponse struct {
	Artifacts []storage.Object `json:"artifacts"`
}

func settingsToResponse(s settings.Settings) SettingsResponse {
	configured := make(map[settings.Provider]bool, len(s.Keys))
	for p, key := range s.Keys {
		configured[p] = key != ""
	}
	return SettingsResponse{Settings: s.Masked(), Configured: configured}
}
