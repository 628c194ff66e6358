package settings

import (
	"encoding/json"
	"fmt"
	"slices"
)

type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderPoe       Provider = "poe"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderDeepSeek  Provider = "deepseek"
	ProviderGrok      Provider = "grok"
	ProviderGroq      Provider = "groq"
	ProviderGoogle    Provider = "google"
)

// Providers lists every provider identifier in display order.
var Providers = []Provider{
	ProviderGemini,
	ProviderPoe,
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderDeepSeek,
	ProviderGrok,
	ProviderGroq,
	ProviderGoogle,
}

func (p Provider) Valid() bool {
	return slices.Contains(Providers, p)
}

type Models struct {
	Text  []string
	Image []string
}

var catalogue = map[Provider]Models{
	ProviderGemini: {
		Text:  []string{"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.5-flash-lite", "gemini-3-pro-preview"},
		Image: []string{"gemini-3-pro-image-preview", "gemini-2.5-flash-image"},
	},
	ProviderPoe: {
		Text:  []string{"Claude-Sonnet-4.5", "GPT-5", "Gemini-2.5-Pro", "Grok-4"},
		Image: []string{"GPT-Image-1", "Imagen-4", "FLUX-pro-1.1"},
	},
	ProviderOpenAI: {
		Text:  []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "o3-mini"},
		Image: []string{"dall-e-3"},
	},
	ProviderAnthropic: {
		Text: []string{"claude-sonnet-4-5", "claude-opus-4-1", "claude-3-5-haiku-latest"},
	},
	ProviderDeepSeek: {
		Text: []string{"deepseek-chat", "deepseek-reasoner"},
	},
	ProviderGrok: {
		Text: []string{"grok-4", "grok-3", "grok-3-mini"},
	},
	ProviderGroq: {
		Text: []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "openai/gpt-oss-120b"},
	},
	ProviderGoogle: {},
}

// ModelsFor returns the model catalogue advertised by a provider.
func ModelsFor(p Provider) Models {
	m := catalogue[p]
	return Models{Text: slices.Clone(m.Text), Image: slices.Clone(m.Image)}
}

type AspectRatio string

const (
	Aspect16x9 AspectRatio = "16:9"
	Aspect9x16 AspectRatio = "9:16"
	Aspect1x1  AspectRatio = "1:1"
	Aspect4x3  AspectRatio = "4:3"
	Aspect3x4  AspectRatio = "3:4"
)

var AspectRatios = []AspectRatio{Aspect16x9, Aspect9x16, Aspect1x1, Aspect4x3, Aspect3x4}

var Resolutions = []string{"1024x1024", "1792x1024", "1024x1792"}

// Settings is the user-editable configuration record.
type Settings struct {
	Keys map[Provider]string `json:"keys"`

	TextProvider   Provider `json:"textProvider"`
	ImageProvider  Provider `json:"imageProvider"`
	SearchProvider Provider `json:"searchProvider"`

	ModelText  string `json:"modelText"`
	ModelImage string `json:"modelImage"`

	EnableSearch   bool `json:"enableSearch"`
	EnableThinking bool `json:"enableThinking"`
	ThinkingBudget int  `json:"thinkingBudget"`

	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`

	ImageAspectRatio AspectRatio `json:"imageAspectRatio"`
	ImageResolution  string      `json:"imageResolution"`
}

const (
	defaultModelText       = "gemini-2.5-flash"
	defaultModelImage      = "gemini-3-pro-image-preview"
	defaultTemperature     = 0.7
	defaultMaxOutputTokens = 8192
	defaultThinkingBudget  = 1024
	defaultResolution      = "1024x1024"
)

func Defaults() Settings {
	keys := make(map[Provider]string, len(Providers))
	for _, p := range Providers {
		keys[p] = ""
	}

	return Settings{
		Keys:             keys,
		TextProvider:     ProviderGemini,
		ImageProvider:    ProviderGemini,
		SearchProvider:   ProviderGemini,
		ModelText:        defaultModelText,
		ModelImage:       defaultModelImage,
		ThinkingBudget:   defaultThinkingBudget,
		Temperature:      defaultTemperature,
		MaxOutputTokens:  defaultMaxOutputTokens,
		ImageAspectRatio: Aspect16x9,
		ImageResolution:  defaultResolution,
	}
}

// Merge decodes a persisted record over the defaults. Fields missing from
// raw keep their default value and the credential map is merged per key.
func Merge(raw []byte) (Settings, error) {
	s := Defaults()
	if len(raw) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(raw, &s); err != nil {
		return Defaults(), fmt.Errorf("decode settings: %w", err)
	}

	if s.Keys == nil {
		s.Keys = Defaults().Keys
	}
	for _, p := range Providers {
		if _, ok := s.Keys[p]; !ok {
			s.Keys[p] = ""
		}
	}

	return s, nil
}

// Clone returns a deep copy so callers cannot share the credential map.
func (s Settings) Clone() Settings {
	c := s
	c.Keys = make(map[Provider]string, len(s.Keys))
	for k, v := range s.Keys {
		c.Keys[k] = v
	}
	return c
}

func (s Settings) Key(p Provider) string {
	return s.Keys[p]
}

// FillKeys sets credentials that are still empty from the given source.
func (s *Settings) FillKeys(src map[Provider]string) {
	if s.Keys == nil {
		s.Keys = make(map[Provider]string, len(Providers))
	}
	for p, v := range src {
		if v != "" && s.Keys[p] == "" {
			s.Keys[p] = v
		}
	}
}

// Normalize resets model selections that do not belong to the selected
// providers to the first model those providers advertise.
func (s *Settings) Normalize() {
	text := catalogue[s.TextProvider].Text
	if !slices.Contains(text, s.ModelText) {
		s.ModelText = first(text)
	}

	image := catalogue[s.ImageProvider].Image
	if !slices.Contains(image, s.ModelImage) {
		s.ModelImage = first(image)
	}
}

func (s Settings) Validate() error {
	routes := []struct {
		name string
		p    Provider
	}{
		{"textProvider", s.TextProvider},
		{"imageProvider", s.ImageProvider},
		{"searchProvider", s.SearchProvider},
	}
	for _, r := range routes {
		if !r.p.Valid() {
			return fmt.Errorf("%s: unknown provider %q", r.name, r.p)
		}
		if _, ok := s.Keys[r.p]; !ok {
			return fmt.Errorf("%s: no credential entry for %q", r.name, r.p)
		}
	}

	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", s.Temperature)
	}
	if s.MaxOutputTokens <= 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", s.MaxOutputTokens)
	}
	if s.EnableThinking && s.ThinkingBudget <= 0 {
		return fmt.Errorf("thinkingBudget must be positive when thinking is enabled")
	}
	if !slices.Contains(AspectRatios, s.ImageAspectRatio) {
		return fmt.Errorf("unsupported aspect ratio %q", s.ImageAspectRatio)
	}

	return nil
}

func first(models []string) string {
	if len(models) == 0 {
		return ""
	}
	return models[0]
}

// MaskKey hides a credential, keeping the last four characters of long keys.
func MaskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}

// Masked returns a copy safe to display, with every credential masked.
func (s Settings) Masked() Settings {
	c := s.Clone()
	for p, key := range c.Keys {
		c.Keys[p] = MaskKey(key)
	}
	return c
}
