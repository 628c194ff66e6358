package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"roteiro/pkg/prompts"
)

type Strategy string

const (
	StrategyDark      Strategy = "dark"
	StrategyAuthority Strategy = "authority"
)

func (s Strategy) Valid() bool {
	return s == StrategyDark || s == StrategyAuthority
}

// NicheState is a snapshot of a niche analysis. AwaitingDecision is true
// after the three analysis steps until a strategy is chosen.
type NicheState struct {
	State
	Input            string   `json:"input"`
	AwaitingDecision bool     `json:"awaiting_decision"`
	Strategy         Strategy `json:"strategy,omitempty"`
}

// NichePipeline runs extraction, a simulated market scan and an opportunity
// report, then suspends until the caller picks one follow-up strategy.
type NichePipeline struct {
	gateway TextGateway
	prompts *prompts.Prompts
	observe Observer

	run run

	mu       sync.Mutex
	input    string
	awaiting bool
	strategy Strategy
}

func NewNichePipeline(gateway TextGateway, p *prompts.Prompts, observe Observer) *NichePipeline {
	return &NichePipeline{gateway: gateway, prompts: p, observe: observe}
}

func (p *NichePipeline) Analyze(ctx context.Context, input string) (NicheState, error) {
	if strings.TrimSpace(input) == "" {
		return p.State(), fmt.Errorf("niche input: %w", ErrEmptyInput)
	}

	id, err := p.run.begin()
	if err != nil {
		return p.State(), err
	}

	p.mu.Lock()
	p.input = input
	p.awaiting = false
	p.strategy = ""
	p.mu.Unlock()

	slog.Info("Starting niche analysis", "run", id, "length", len(input))

	if err := p.analyze(ctx, input); err != nil {
		p.run.fail(err)
		slog.Error("Niche analysis failed", "run", id, "error", err)
		return p.State(), err
	}

	p.run.mu.Lock()
	p.run.state.Processing = false
	p.run.mu.Unlock()

	p.mu.Lock()
	p.awaiting = true
	p.mu.Unlock()

	p.observe.emit(Event{Kind: EventNotice, RunID: id, Message: "awaiting strategy decision"})
	return p.State(), nil
}

func (p *NichePipeline) analyze(ctx context.Context, input string) error {
	system := p.prompts.System.Research
	params := prompts.NicheParams{Input: input}

	extraction, err := generate(ctx, p.gateway, system, &p.run, p.observe, 1, step{
		name:   "extraction",
		prompt: func() (string, error) { return p.prompts.RenderNicheExtract(params) },
	})
	if err != nil {
		return err
	}
	params.Extraction = extraction

	market, err := generate(ctx, p.gateway, system, &p.run, p.observe, 2, step{
		name:   "market_scan",
		prompt: func() (string, error) { return p.prompts.RenderNicheMarket(params) },
	})
	if err != nil {
		return err
	}
	params.Market = market

	_, err = generate(ctx, p.gateway, system, &p.run, p.observe, 3, step{
		name:   "report",
		prompt: func() (string, error) { return p.prompts.RenderNicheReport(params) },
	})
	return err
}

// Choose runs the follow-up generation for strategy. The decision is final
// for the run: a second call fails with ErrNotAwaitingDecision.
func (p *NichePipeline) Choose(ctx context.Context, strategy Strategy) (NicheState, error) {
	if !strategy.Valid() {
		return p.State(), fmt.Errorf("%w %q", ErrUnknownStrategy, strategy)
	}

	market, err := p.decide(strategy)
	if err != nil {
		return p.State(), err
	}

	id := p.run.snapshot().ID
	slog.Info("Strategy chosen", "run", id, "strategy", strategy)

	params := prompts.NicheParams{Market: market}
	render := p.prompts.RenderNicheAuthority
	if strategy == StrategyDark {
		render = p.prompts.RenderNicheDark
	}

	_, err = generate(ctx, p.gateway, p.prompts.System.Research, &p.run, p.observe, 4, step{
		name:   string(strategy) + "_strategy",
		prompt: func() (string, error) { return render(params) },
	})
	if err != nil {
		p.run.fail(err)
		slog.Error("Strategy generation failed", "run", id, "error", err)
		return p.State(), err
	}

	p.run.mu.Lock()
	p.run.state.Processing = false
	p.run.state.Complete = true
	p.run.mu.Unlock()

	return p.State(), nil
}

// decide consumes the pending decision and returns the market scan output.
func (p *NichePipeline) decide(strategy Strategy) (string, error) {
	p.run.mu.Lock()
	defer p.run.mu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.awaiting {
		return "", ErrNotAwaitingDecision
	}

	p.awaiting = false
	p.strategy = strategy
	p.run.state.Processing = true
	return p.run.state.Results[1], nil
}

func (p *NichePipeline) State() NicheState {
	s := NicheState{State: p.run.snapshot()}

	p.mu.Lock()
	defer p.mu.Unlock()

	s.Input = p.input
	s.AwaitingDecision = p.awaiting
	s.Strategy = p.strategy
	return s
}
