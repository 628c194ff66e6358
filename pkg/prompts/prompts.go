package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

const defaultPromptsPath = "prompts.yaml"

//go:embed default.yaml
var defaultPrompts []byte

type Prompts struct {
	System  SystemPrompts  `yaml:"system"`
	Script  ScriptPrompts  `yaml:"script"`
	Niche   NichePrompts   `yaml:"niche"`
	Content ContentPrompts `yaml:"content"`
	BRoll   BRollPrompts   `yaml:"broll"`
}

type SystemPrompts struct {
	Script   string `yaml:"script"`
	Research string `yaml:"research"`
	Visual   string `yaml:"visual"`
}

type ScriptPrompts struct {
	StrategyAuthority string `yaml:"strategy_authority"`
	StrategyDark      string `yaml:"strategy_dark"`
	Introduction      string `yaml:"introduction"`
	Development       string `yaml:"development"`
	Finalize          string `yaml:"finalize"`
	Style             string `yaml:"style"`
	Formatting        string `yaml:"formatting"`
	Fix               string `yaml:"fix"`
}

type NichePrompts struct {
	Extract   string `yaml:"extract"`
	Market    string `yaml:"market"`
	Report    string `yaml:"report"`
	Dark      string `yaml:"dark"`
	Authority string `yaml:"authority"`
}

type ContentPrompts struct {
	Titles      string `yaml:"titles"`
	Description string `yaml:"description"`
	Themes      string `yaml:"themes"`
	Thumbnail   string `yaml:"thumbnail"`
}

type BRollPrompts struct {
	Segment string `yaml:"segment"`
}

// ScriptParams feeds every script step. Later steps read the outputs of
// earlier ones through Strategy, Introduction and Body.
type ScriptParams struct {
	ChannelType   string
	Topic         string
	Transcription string
	ChannelName   string
	NarratorName  string
	ProductCTA    string
	SponsorCTA    string
	Style         string
	VideoLength   string
	Language      string
	CTAMarker     string

	Strategy     string
	Introduction string
	Body         string
}

type RewriteParams struct {
	Script string
}

type FixParams struct {
	Script string
	Errors []string
}

type NicheParams struct {
	Input      string
	Extraction string
	Market     string
}

type TextParams struct {
	Text string
}

type BRollParams struct {
	Text   string
	Pacing string
	Source string
	Mood   string
	Style  string
}

// Default returns the built-in prompt set.
func Default() (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(defaultPrompts, &p); err != nil {
		return nil, fmt.Errorf("failed to parse default prompts: %w", err)
	}
	return &p, nil
}

// Load reads prompts.yaml from the working directory over the built-in set.
func Load() (*Prompts, error) {
	return LoadFrom(defaultPromptsPath)
}

// LoadFrom overlays the templates in path on the built-in set. A missing
// file yields the built-in set unchanged.
func LoadFrom(path string) (*Prompts, error) {
	p, err := Default()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	return p, nil
}

func (p *Prompts) RenderStrategy(params ScriptParams) (string, error) {
	if params.ChannelType == "dark" {
		return render(p.Script.StrategyDark, params)
	}
	return render(p.Script.StrategyAuthority, params)
}

func (p *Prompts) RenderIntroduction(params ScriptParams) (string, error) {
	return render(p.Script.Introduction, params)
}

func (p *Prompts) RenderDevelopment(params ScriptParams) (string, error) {
	return render(p.Script.Development, params)
}

func (p *Prompts) RenderFinalize(params ScriptParams) (string, error) {
	return render(p.Script.Finalize, params)
}

func (p *Prompts) RenderStyle(params RewriteParams) (string, error) {
	return render(p.Script.Style, params)
}

func (p *Prompts) RenderFormatting(params RewriteParams) (string, error) {
	return render(p.Script.Formatting, params)
}

func (p *Prompts) RenderFix(params FixParams) (string, error) {
	return render(p.Script.Fix, params)
}

func (p *Prompts) RenderNicheExtract(params NicheParams) (string, error) {
	return render(p.Niche.Extract, params)
}

func (p *Prompts) RenderNicheMarket(params NicheParams) (string, error) {
	return render(p.Niche.Market, params)
}

func (p *Prompts) RenderNicheReport(params NicheParams) (string, error) {
	return render(p.Niche.Report, params)
}

func (p *Prompts) RenderNicheDark(params NicheParams) (string, error) {
	return render(p.Niche.Dark, params)
}

func (p *Prompts) RenderNicheAuthority(params NicheParams) (string, error) {
	return render(p.Niche.Authority, params)
}

func (p *Prompts) RenderTitles(params TextParams) (string, error) {
	return render(p.Content.Titles, params)
}

func (p *Prompts) RenderDescription(params TextParams) (string, error) {
	return render(p.Content.Description, params)
}

func (p *Prompts) RenderThemes(params TextParams) (string, error) {
	return render(p.Content.Themes, params)
}

func (p *Prompts) RenderThumbnail(params TextParams) (string, error) {
	return render(p.Content.Thumbnail, params)
}

func (p *Prompts) RenderBRoll(params BRollParams) (string, error) {
	return render(p.BRoll.Segment, params)
}

var funcs = template.FuncMap{
	"truncate": truncate,
	"inc":      func(i int) int { return i + 1 },
}

// truncate keeps at most n runes of s.
func truncate(n int, s string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func render(tmpl string, data any) (string, error) {
	t, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
