package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"roteiro/internal/settings"
	"roteiro/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for roteiro",
	Long:  `Configure provider keys, Google Cloud storage and secrets, and write a .env file.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("Roteiro Setup"))

	if !isTerminal(os.Stdin) {
		return fmt.Errorf("setup needs an interactive terminal")
	}

	if _, err := os.Stat(".env"); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing .env file").
			Description("Overwrite?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing .env"))
			return nil
		}
	}

	env := make(map[string]string)

	steps := []struct {
		name string
		fn   func(map[string]string) error
	}{
		{"Provider keys", configureProviderKeys},
		{"Image search", configureImageSearch},
		{"Narration", configureNarration},
		{"Google Cloud", configureGCP},
	}
	for _, step := range steps {
		if err := step.fn(env); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	return writeEnvFile(env)
}

var keyHelp = map[settings.Provider]string{
	settings.ProviderGemini:    "https://aistudio.google.com/apikey",
	settings.ProviderOpenAI:    "https://platform.openai.com/api-keys",
	settings.ProviderAnthropic: "https://console.anthropic.com/settings/keys",
	settings.ProviderDeepSeek:  "https://platform.deepseek.com/api_keys",
	settings.ProviderGrok:      "https://console.x.ai",
	settings.ProviderPoe:       "https://poe.com/api_key",
	settings.ProviderGroq:      "https://console.groq.com/keys",
}

func configureProviderKeys(env map[string]string) error {
	var chosen []settings.Provider
	options := make([]huh.Option[settings.Provider], 0, len(keyHelp))
	for _, p := range settings.Providers {
		if _, ok := keyHelp[p]; ok {
			options = append(options, huh.NewOption(string(p), p))
		}
	}

	if err := huh.NewMultiSelect[settings.Provider]().
		Title("Which LLM providers will you use?").
		Options(options...).
		Value(&chosen).
		Validate(func(ps []settings.Provider) error {
			if len(ps) == 0 {
				return fmt.Errorf("pick at least one provider")
			}
			return nil
		}).
		Run(); err != nil {
		return err
	}

	values := make([]string, len(chosen))
	fields := make([]huh.Field, len(chosen))
	for i, p := range chosen {
		fields[i] = huh.NewInput().
			Title(config.KeyEnvName(p)).
			Description(keyHelp[p]).
			EchoMode(huh.EchoModePassword).
			Value(&values[i]).
			Validate(required(config.KeyEnvName(p)))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	for i, p := range chosen {
		env[config.KeyEnvName(p)] = strings.TrimSpace(values[i])
	}
	return nil
}

func configureImageSearch(env map[string]string) error {
	var setup bool
	if err := huh.NewConfirm().
		Title("Setup Google Custom Search?").
		Description("Lets B-roll segments use stock images instead of generating them").
		Value(&setup).
		Run(); err != nil || !setup {
		return err
	}

	fmt.Println(infoStyle.Render(`
To create Custom Search credentials:
1. Go to https://console.cloud.google.com/apis/credentials
2. Click "Create Credentials" → "API Key"
3. Go to https://programmablesearchengine.google.com/
4. Create a search engine with image search on and copy its ID
`))

	var apiKey, engineID string
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Google Search API Key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Search Engine ID").
				Value(&engineID),
		),
	).Run(); err != nil {
		return err
	}

	setIfPresent(env, config.KeyEnvName(settings.ProviderGoogle), apiKey)
	setIfPresent(env, "GOOGLE_SEARCH_ENGINE_ID", engineID)
	return nil
}

func configureNarration(env map[string]string) error {
	var key string
	if err := huh.NewInput().
		Title("ElevenLabs API Key (optional)").
		Description("Leave empty to render silent placeholder audio").
		EchoMode(huh.EchoModePassword).
		Value(&key).
		Run(); err != nil {
		return err
	}
	setIfPresent(env, "ELEVENLABS_API_KEY", key)
	return nil
}

func configureGCP(env map[string]string) error {
	var setup bool
	if err := huh.NewConfirm().
		Title("Setup Google Cloud?").
		Description("Stores exported artifacts in GCS and reads keys from Secret Manager").
		Value(&setup).
		Run(); err != nil || !setup {
		return err
	}

	if !commandExists("gcloud") {
		fmt.Println(warnStyle.Render("gcloud CLI not found - install from https://cloud.google.com/sdk/docs/install"))
		return nil
	}

	project, err := chooseGCPProject()
	if err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("GCP setup skipped: %v", err)))
		return nil
	}
	env["GOOGLE_CLOUD_PROJECT"] = project

	if err := runWithSpinner("Enabling APIs", func() error {
		return runSetupCmd("gcloud", "services", "enable",
			"storage.googleapis.com",
			"secretmanager.googleapis.com",
			"customsearch.googleapis.com",
			"--project", project)
	}); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("API enablement failed: %v", err)))
	}

	var bucket string
	if err := huh.NewInput().
		Title("GCS bucket for artifacts (optional)").
		Placeholder(project + "-roteiro").
		Value(&bucket).
		Run(); err != nil {
		return err
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil
	}

	if err := runWithSpinner("Creating bucket", func() error {
		return runSetupCmd("gcloud", "storage", "buckets", "create", "gs://"+bucket, "--project", project)
	}); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Bucket not created, it may already exist: %v", err)))
	}
	env["GCS_BUCKET"] = bucket
	return nil
}

func chooseGCPProject() (string, error) {
	existing := activeGCPProject()

	options := []huh.Option[string]{huh.NewOption("Enter project ID manually", "")}
	if existing != "" {
		options = append([]huh.Option[string]{
			huh.NewOption(fmt.Sprintf("Use current: %s", existing), existing),
		}, options...)
	}

	var choice string
	if err := huh.NewSelect[string]().
		Title("Google Cloud Project").
		Options(options...).
		Value(&choice).
		Run(); err != nil {
		return "", err
	}
	if choice != "" {
		return choice, nil
	}

	var projectID string
	if err := huh.NewInput().
		Title("Project ID").
		Value(&projectID).
		Validate(required("Project ID")).
		Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(projectID), nil
}

func activeGCPProject() string {
	out, err := exec.Command("gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func setIfPresent(env map[string]string, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		env[key] = value
	}
}

// envOrder is the line order of the written .env file.
func envOrder() []string {
	order := []string{"GOOGLE_CLOUD_PROJECT", "GCS_BUCKET"}
	for _, p := range settings.Providers {
		order = append(order, config.KeyEnvName(p))
	}
	return append(order, "GOOGLE_SEARCH_ENGINE_ID", "ELEVENLABS_API_KEY")
}

func writeEnvFile(env map[string]string) error {
	f, err := os.OpenFile(".env", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for _, key := range envOrder() {
		if val, ok := env[key]; ok && val != "" {
			if _, err := fmt.Fprintf(f, "%s=%s\n", key, val); err != nil {
				return err
			}
		}
	}

	fmt.Println(successStyle.Render("✓ Created .env file"))
	printNextSteps()
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Pick default providers: roteiro settings set --text <provider> --image <provider>")
	fmt.Println("  2. Write a script: roteiro script --topic \"your topic\"")
	fmt.Println("  3. Or serve the HTTP API: roteiro serve")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runSetupCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, stderr.String())
	}
	return nil
}
