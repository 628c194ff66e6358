package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func nicheGateway() *fakeGateway {
	return (&fakeGateway{}).
		on("AGENT 4A", reply("dark-plan")).
		on("AGENT 4B", reply("authority-plan")).
		on("AGENT 3", reply("report-out")).
		on("AGENT 2", reply("market-out")).
		on("AGENT 1", reply("extract-out"))
}

func TestNichePipelineAnalyze(t *testing.T) {
	gw := nicheGateway()
	p := NewNichePipeline(gw, defaultPrompts(t), nil)

	state, err := p.Analyze(context.Background(), "home baking, sourdough, gluten free")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if got := strings.Join(state.Results, "|"); got != "extract-out|market-out|report-out" {
		t.Errorf("Results = %q", state.Results)
	}
	if state.Processing || state.Complete {
		t.Errorf("state = %+v, want suspended", state.State)
	}
	if !state.AwaitingDecision {
		t.Error("AwaitingDecision = false, want true")
	}
	if !strings.Contains(gw.promptWith("AGENT 2"), "extract-out") {
		t.Error("market scan did not consume the extraction")
	}
	if !strings.Contains(gw.promptWith("AGENT 3"), "market-out") {
		t.Error("report did not consume the market scan")
	}
}

func TestNichePipelineChoose(t *testing.T) {
	tests := []struct {
		strategy Strategy
		marker   string
		want     string
	}{
		{strategy: StrategyDark, marker: "AGENT 4A", want: "dark-plan"},
		{strategy: StrategyAuthority, marker: "AGENT 4B", want: "authority-plan"},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			gw := nicheGateway()
			p := NewNichePipeline(gw, defaultPrompts(t), nil)
			ctx := context.Background()

			if _, err := p.Analyze(ctx, "input"); err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			state, err := p.Choose(ctx, tt.strategy)
			if err != nil {
				t.Fatalf("Choose() error = %v", err)
			}

			if len(state.Results) != 4 || state.Results[3] != tt.want {
				t.Errorf("Results = %q, want 4th %q", state.Results, tt.want)
			}
			if !state.Complete || state.Processing || state.AwaitingDecision {
				t.Errorf("state = %+v, want complete", state)
			}
			if state.Strategy != tt.strategy {
				t.Errorf("Strategy = %q, want %q", state.Strategy, tt.strategy)
			}
			if !strings.Contains(gw.promptWith(tt.marker), "market-out") {
				t.Error("strategy prompt does not use the market scan")
			}

			if _, err := p.Choose(ctx, tt.strategy); !errors.Is(err, ErrNotAwaitingDecision) {
				t.Errorf("second Choose() error = %v, want ErrNotAwaitingDecision", err)
			}
			if gw.count("text:AGENT 4") != 1 {
				t.Errorf("strategy generations = %d, want 1", gw.count("text:AGENT 4"))
			}
		})
	}
}

func TestNichePipelineChooseErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("beforeAnalyze", func(t *testing.T) {
		p := NewNichePipeline(nicheGateway(), defaultPrompts(t), nil)
		if _, err := p.Choose(ctx, StrategyDark); !errors.Is(err, ErrNotAwaitingDecision) {
			t.Errorf("Choose() error = %v, want ErrNotAwaitingDecision", err)
		}
	})

	t.Run("unknownStrategy", func(t *testing.T) {
		p := NewNichePipeline(nicheGateway(), defaultPrompts(t), nil)
		if _, err := p.Analyze(ctx, "input"); err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if _, err := p.Choose(ctx, "vlog"); !errors.Is(err, ErrUnknownStrategy) {
			t.Errorf("Choose() error = %v, want ErrUnknownStrategy", err)
		}
		if !p.State().AwaitingDecision {
			t.Error("unknown strategy consumed the decision")
		}
	})

	t.Run("strategyFailure", func(t *testing.T) {
		gw := (&fakeGateway{}).
			on("AGENT 4", fail(errUpstream)).
			on("AGENT", reply("ok"))
		p := NewNichePipeline(gw, defaultPrompts(t), nil)
		if _, err := p.Analyze(ctx, "input"); err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		state, err := p.Choose(ctx, StrategyAuthority)
		if !errors.Is(err, errUpstream) {
			t.Fatalf("Choose() error = %v, want errUpstream", err)
		}
		if state.Complete || state.Processing || state.Error == "" {
			t.Errorf("state = %+v, want failed", state.State)
		}
	})
}

func TestNichePipelineAnalyzeFailure(t *testing.T) {
	gw := (&fakeGateway{}).
		on("AGENT 2", fail(errUpstream)).
		on("AGENT", reply("ok"))
	p := NewNichePipeline(gw, defaultPrompts(t), nil)

	state, err := p.Analyze(context.Background(), "input")
	if !errors.Is(err, errUpstream) {
		t.Fatalf("Analyze() error = %v, want errUpstream", err)
	}
	if len(state.Results) != 1 {
		t.Errorf("len(Results) = %d, want 1", len(state.Results))
	}
	if state.AwaitingDecision || state.Processing {
		t.Errorf("state = %+v, want stopped without a pending decision", state)
	}
	if len(gw.prompts) != 2 {
		t.Errorf("gateway saw %d prompts, want 2", len(gw.prompts))
	}
}

func TestNichePipelineEmptyInput(t *testing.T) {
	gw := nicheGateway()
	p := NewNichePipeline(gw, defaultPrompts(t), nil)

	if _, err := p.Analyze(context.Background(), "  "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Analyze() error = %v, want ErrEmptyInput", err)
	}
	if len(gw.calls) != 0 {
		t.Error("gateway called for empty input")
	}
}
