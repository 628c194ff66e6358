package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"roteiro/internal/pipeline"
)

var (
	nicheFile     string
	nicheStrategy string
)

var nicheCmd = &cobra.Command{
	Use:   "niche [channels or keywords...]",
	Short: "Analyze a niche and plan a channel strategy",
	Long: `Run niche extraction, a market scan and an opportunity report, then pick
a dark or authority channel strategy for the final plan.`,
	RunE: runNiche,
}

func init() {
	nicheCmd.Flags().StringVarP(&nicheFile, "file", "f", "", "Read the niche input from a file (- for stdin)")
	nicheCmd.Flags().StringVarP(&nicheStrategy, "strategy", "s", "", "Strategy to plan: dark or authority (prompted when empty)")
	rootCmd.AddCommand(nicheCmd)
}

func runNiche(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	input, err := readInput(nicheFile, args)
	if err != nil {
		return err
	}

	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()
	svc := result.Service

	var state pipeline.NicheState
	if err := runWithSpinner("Analyzing niche", func() error {
		state, err = svc.AnalyzeNiche(ctx, input, logSteps)
		return err
	}); err != nil {
		return err
	}

	if !jsonOutput {
		names := []string{"Extraction", "Market scan", "Opportunity report"}
		for i, r := range state.Results {
			printSection(names[i], r)
		}
	}

	strategy := pipeline.Strategy(nicheStrategy)
	if strategy == "" {
		if strategy, err = promptStrategy(); err != nil {
			return err
		}
	}

	if err := runWithSpinner(fmt.Sprintf("Planning %s strategy", strategy), func() error {
		state, err = svc.ChooseStrategy(ctx, state.ID, strategy)
		return err
	}); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(state)
	}
	printSection("Strategy plan", state.Results[len(state.Results)-1])
	return nil
}

func promptStrategy() (pipeline.Strategy, error) {
	if !isTerminal(os.Stdin) {
		return "", errors.New("no terminal to prompt for a strategy, pass --strategy")
	}

	var choice pipeline.Strategy
	err := huh.NewSelect[pipeline.Strategy]().
		Title("Which channel strategy?").
		Options(
			huh.NewOption("Dark channel (faceless, narrated)", pipeline.StrategyDark),
			huh.NewOption("Authority channel (presenter-led)", pipeline.StrategyAuthority),
		).
		Value(&choice).
		Run()
	return choice, err
}
