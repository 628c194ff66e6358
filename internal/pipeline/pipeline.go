// Package pipeline sequences prompt rendering, gateway calls and script
// audits into the script, niche, one-shot and B-Roll workflows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"roteiro/internal/llm"
)

var (
	ErrRunInProgress       = errors.New("a run is already in progress")
	ErrNotComplete         = errors.New("base run has not completed")
	ErrAlreadyApplied      = errors.New("transform already applied in this run")
	ErrNotAwaitingDecision = errors.New("run is not awaiting a strategy decision")
	ErrUnknownStrategy     = errors.New("unknown strategy")
	ErrEmptyInput          = errors.New("input is empty")
)

// TextGateway is the text capability of the LLM gateway.
type TextGateway interface {
	GenerateText(ctx context.Context, prompt, system string) (*llm.TextResult, error)
}

// Gateway is the full capability set used by the image workflows.
type Gateway interface {
	TextGateway
	GenerateImage(ctx context.Context, prompt string, refs []llm.Image) (*llm.Image, error)
	SearchImages(ctx context.Context, query string) ([]llm.Image, error)
}

type EventKind string

const (
	EventStepStarted   EventKind = "step_started"
	EventStepCompleted EventKind = "step_completed"
	EventCorrection    EventKind = "correction"
	EventNotice        EventKind = "notice"
	EventSegment       EventKind = "segment"
)

// Event is a progress notification. Segment is set for EventSegment.
type Event struct {
	Kind    EventKind `json:"kind"`
	RunID   string    `json:"run_id,omitempty"`
	Step    int       `json:"step,omitempty"`
	Name    string    `json:"name,omitempty"`
	Message string    `json:"message,omitempty"`
	Segment *Segment  `json:"segment,omitempty"`
}

// Observer receives progress events. It is called synchronously from the
// goroutine running the workflow.
type Observer func(Event)

func (o Observer) emit(e Event) {
	if o != nil {
		o(e)
	}
}

// State is the run state shared by the multi-step pipelines. Results holds
// one entry per completed step, in order.
type State struct {
	ID          string   `json:"id"`
	Results     []string `json:"results"`
	CurrentStep int      `json:"current_step"`
	Processing  bool     `json:"processing"`
	Complete    bool     `json:"complete"`
	Error       string   `json:"error,omitempty"`
}

func (s State) clone() State {
	c := s
	c.Results = append([]string(nil), s.Results...)
	return c
}

// run guards one State. Exactly one run may be processing at a time.
type run struct {
	mu    sync.Mutex
	state State
}

func (r *run) begin() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Processing {
		return "", ErrRunInProgress
	}
	r.state = State{
		ID:          uuid.NewString(),
		Results:     []string{},
		CurrentStep: 1,
		Processing:  true,
	}
	return r.state.ID, nil
}

func (r *run) record(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Results = append(r.state.Results, result)
	r.state.CurrentStep = len(r.state.Results) + 1
}

func (r *run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Processing = false
	r.state.Error = err.Error()
}

func (r *run) snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// step is one generation in a sequential pipeline.
type step struct {
	name   string
	prompt func() (string, error)
}

// generate renders and runs one step, recording its output on success.
func generate(ctx context.Context, gw TextGateway, system string, r *run, observe Observer, n int, s step) (string, error) {
	id := r.snapshot().ID
	observe.emit(Event{Kind: EventStepStarted, RunID: id, Step: n, Name: s.name})
	slog.Info("Running step", "run", id, "step", n, "name", s.name)

	prompt, err := s.prompt()
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", s.name, err)
	}

	result, err := gw.GenerateText(ctx, prompt, system)
	if err != nil {
		return "", fmt.Errorf("%s: %w", s.name, err)
	}

	r.record(result.Text)
	if result.Truncated {
		observe.emit(Event{Kind: EventNotice, RunID: id, Step: n, Name: s.name, Message: "response truncated at the output token limit"})
	}
	observe.emit(Event{Kind: EventStepCompleted, RunID: id, Step: n, Name: s.name})
	slog.Debug("Step completed", "run", id, "step", n, "name", s.name, "length", len(result.Text), "truncated", result.Truncated)

	return result.Text, nil
}
