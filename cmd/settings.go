package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"roteiro/internal/gateway"
	"roteiro/internal/settings"
)

var (
	setText, setImage, setSearch string
	setModelText, setModelImage  string
	setTemperature               float64
	setMaxTokens                 int
	setSearchGrounding           bool
	setThinking                  bool
	setThinkingBudget            int
	setAspect, setResolution     string
	setKeys                      map[string]string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change provider settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings with masked keys",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change provider routing, models, generation options or keys",
	Example: `  roteiro settings set --text anthropic --model-text claude-sonnet-4-5
  roteiro settings set --key openai=sk-... --image openai`,
	RunE: runSettingsSet,
}

var settingsEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Pick providers, models and generation options interactively",
	RunE:  runSettingsEdit,
}

func init() {
	f := settingsSetCmd.Flags()
	f.StringVar(&setText, "text", "", "Text provider")
	f.StringVar(&setImage, "image", "", "Image provider")
	f.StringVar(&setSearch, "search", "", "Image search provider")
	f.StringVar(&setModelText, "model-text", "", "Text model")
	f.StringVar(&setModelImage, "model-image", "", "Image model")
	f.Float64Var(&setTemperature, "temperature", 0, "Sampling temperature (0-2)")
	f.IntVar(&setMaxTokens, "max-tokens", 0, "Maximum output tokens")
	f.BoolVar(&setSearchGrounding, "grounding", false, "Enable search grounding for text")
	f.BoolVar(&setThinking, "thinking", false, "Enable extended thinking")
	f.IntVar(&setThinkingBudget, "thinking-budget", 0, "Thinking token budget")
	f.StringVar(&setAspect, "aspect", "", "Image aspect ratio")
	f.StringVar(&setResolution, "resolution", "", "Image resolution")
	f.StringToStringVar(&setKeys, "key", nil, "Provider credential as provider=key, repeatable")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsEditCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()

	s, err := result.Service.Settings(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s.Masked())
	}
	printSettings(s.Masked())
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()

	s, err := result.Service.Settings(cmd.Context())
	if err != nil {
		return err
	}
	if err := applySettingsFlags(cmd, &s); err != nil {
		return err
	}

	saved, err := result.Service.UpdateSettings(cmd.Context(), s)
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Settings saved"))
	printSettings(saved.Masked())
	return nil
}

func runSettingsEdit(cmd *cobra.Command, args []string) error {
	if !isTerminal(os.Stdin) {
		return fmt.Errorf("settings edit needs an interactive terminal, use settings set")
	}

	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()

	s, err := result.Service.Settings(cmd.Context())
	if err != nil {
		return err
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[settings.Provider]().
				Title("Text provider").
				Options(providerOptions(gateway.CapText)...).
				Value(&s.TextProvider),
			huh.NewSelect[settings.Provider]().
				Title("Image provider").
				Options(providerOptions(gateway.CapImage)...).
				Value(&s.ImageProvider),
			huh.NewSelect[settings.Provider]().
				Title("Image search provider").
				Options(providerOptions(gateway.CapSearch)...).
				Value(&s.SearchProvider),
		),
	).Run(); err != nil {
		return err
	}
	s.Normalize()

	temperature := strconv.FormatFloat(s.Temperature, 'f', -1, 64)
	maxTokens := strconv.Itoa(s.MaxOutputTokens)
	budget := strconv.Itoa(s.ThinkingBudget)

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Text model").
				Options(huh.NewOptions(settings.ModelsFor(s.TextProvider).Text...)...).
				Value(&s.ModelText),
			huh.NewSelect[string]().
				Title("Image model").
				Options(huh.NewOptions(settings.ModelsFor(s.ImageProvider).Image...)...).
				Value(&s.ModelImage),
			huh.NewSelect[settings.AspectRatio]().
				Title("Aspect ratio").
				Options(huh.NewOptions(settings.AspectRatios...)...).
				Value(&s.ImageAspectRatio),
			huh.NewSelect[string]().
				Title("Resolution").
				Options(huh.NewOptions(settings.Resolutions...)...).
				Value(&s.ImageResolution),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Temperature").
				Value(&temperature).
				Validate(parseFloatField),
			huh.NewInput().
				Title("Max output tokens").
				Value(&maxTokens).
				Validate(parseIntField),
			huh.NewConfirm().
				Title("Search grounding").
				Value(&s.EnableSearch),
			huh.NewConfirm().
				Title("Extended thinking").
				Value(&s.EnableThinking),
			huh.NewInput().
				Title("Thinking budget").
				Value(&budget).
				Validate(parseIntField),
		),
	).Run(); err != nil {
		return err
	}

	s.Temperature, _ = strconv.ParseFloat(strings.TrimSpace(temperature), 64)
	s.MaxOutputTokens, _ = strconv.Atoi(strings.TrimSpace(maxTokens))
	s.ThinkingBudget, _ = strconv.Atoi(strings.TrimSpace(budget))

	saved, err := result.Service.UpdateSettings(cmd.Context(), s)
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Settings saved"))
	printSettings(saved.Masked())
	return nil
}

func providerOptions(c gateway.Capability) []huh.Option[settings.Provider] {
	var options []huh.Option[settings.Provider]
	for _, p := range settings.Providers {
		if gateway.Capabilities(p).Has(c) {
			options = append(options, huh.NewOption(string(p), p))
		}
	}
	return options
}

func parseFloatField(v string) error {
	_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err
}

func parseIntField(v string) error {
	_, err := strconv.Atoi(strings.TrimSpace(v))
	return err
}

func applySettingsFlags(cmd *cobra.Command, s *settings.Settings) error {
	changed := cmd.Flags().Changed

	if changed("text") {
		s.TextProvider = settings.Provider(setText)
	}
	if changed("image") {
		s.ImageProvider = settings.Provider(setImage)
	}
	if changed("search") {
		s.SearchProvider = settings.Provider(setSearch)
	}
	if changed("model-text") {
		s.ModelText = setModelText
	}
	if changed("model-image") {
		s.ModelImage = setModelImage
	}
	if changed("temperature") {
		s.Temperature = setTemperature
	}
	if changed("max-tokens") {
		s.MaxOutputTokens = setMaxTokens
	}
	if changed("grounding") {
		s.EnableSearch = setSearchGrounding
	}
	if changed("thinking") {
		s.EnableThinking = setThinking
	}
	if changed("thinking-budget") {
		s.ThinkingBudget = setThinkingBudget
	}
	if changed("aspect") {
		s.ImageAspectRatio = settings.AspectRatio(setAspect)
	}
	if changed("resolution") {
		s.ImageResolution = setResolution
	}

	if s.Keys == nil {
		s.Keys = make(map[settings.Provider]string, len(setKeys))
	}
	for name, key := range setKeys {
		p := settings.Provider(strings.ToLower(name))
		if !p.Valid() {
			return fmt.Errorf("unknown provider %q", name)
		}
		s.Keys[p] = strings.TrimSpace(key)
	}
	return nil
}

func printSettings(s settings.Settings) {
	fmt.Println(titleStyle.Render("Routing"))
	fmt.Printf("  text    %-10s %s\n", s.TextProvider, s.ModelText)
	fmt.Printf("  image   %-10s %s (%s, %s)\n", s.ImageProvider, s.ModelImage, s.ImageAspectRatio, s.ImageResolution)
	fmt.Printf("  search  %s\n\n", s.SearchProvider)

	fmt.Println(titleStyle.Render("Generation"))
	fmt.Printf("  temperature %.2f  max tokens %d  grounding %t  thinking %t (%d)\n\n",
		s.Temperature, s.MaxOutputTokens, s.EnableSearch, s.EnableThinking, s.ThinkingBudget)

	fmt.Println(titleStyle.Render("Keys"))
	for _, p := range settings.Providers {
		key := s.Keys[p]
		if key == "" {
			fmt.Printf("  %-10s %s\n", p, warnStyle.Render("not set"))
			continue
		}
		fmt.Printf("  %-10s %s\n", p, successStyle.Render(key))
	}
}
