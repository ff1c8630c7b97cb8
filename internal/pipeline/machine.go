package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sourcesage/internal/observability/metrics"
	"sourcesage/internal/observability/tracing"
)

// DefaultMaxRestarts bounds how often routing may re-enter discovery in one run.
const DefaultMaxRestarts = 3

// Feedback lets an interactive caller steer a run.
type Feedback interface {
	// Select returns the item URLs to analyze after a discovery.
	Select(ctx context.Context, st *State) ([]string, error)

	// Route returns the routing choice after prompts are generated.
	Route(ctx context.Context, st *State) (Routing, error)
}

// Event is a progress notification.
type Event struct {
	Step    Step   `json:"stage"`
	Message string `json:"message"`
	Percent int    `json:"progress"`
}

// Observer receives progress events. It is called synchronously from the
// run's goroutine and must not block.
type Observer func(Event)

// Machine runs stages in their fixed order.
type Machine struct {
	stages      map[Step]Stage
	router      Router
	maxRestarts int
	feedback    Feedback
	observer    Observer
	logger      *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMaxRestarts overrides DefaultMaxRestarts. Zero forbids restarts.
func WithMaxRestarts(n int) MachineOption {
	return func(m *Machine) {
		if n >= 0 {
			m.maxRestarts = n
		}
	}
}

// WithFeedback installs an interactive selector and router.
func WithFeedback(f Feedback) MachineOption {
	return func(m *Machine) { m.feedback = f }
}

// WithObserver installs a progress observer.
func WithObserver(o Observer) MachineOption {
	return func(m *Machine) { m.observer = o }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) { m.logger = l }
}

// NewMachine registers stages by Name. Steps without a stage abort the run
// when reached.
func NewMachine(stages []Stage, opts ...MachineOption) *Machine {
	m := &Machine{
		stages:      make(map[Step]Stage, len(stages)),
		maxRestarts: DefaultMaxRestarts,
		logger:      slog.Default(),
	}
	for _, s := range stages {
		m.stages[s.Name()] = s
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Observe returns a copy of m reporting to o. Stages are shared.
func (m *Machine) Observe(o Observer) *Machine {
	cp := *m
	cp.observer = o
	return &cp
}

// Run executes the machine starting at from and returns st in its final
// state. On failure st.Step is StepAborted, st.LastError holds the message
// and the returned error wraps ErrAborted and the stage error.
func (m *Machine) Run(ctx context.Context, st *State, from Step) (*State, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("pipeline.from", from.String())))
	defer span.End()

	restarts := 0
	step := from
	for {
		switch step {
		case StepTerminal:
			st.Step = StepTerminal
			m.emit(StepTerminal, fmt.Sprintf("done: %d analyses, %d reports", len(st.Records), len(st.Reports)))
			metrics.RecordPipelineRun(false)
			span.SetAttributes(attribute.Int("pipeline.records", len(st.Records)))
			return st, nil

		case StepRoute:
			st.Step = StepRoute
			if m.feedback != nil {
				choice, err := m.feedback.Route(ctx, st)
				if err != nil {
					return m.abort(ctx, span, st, StepRoute, err)
				}
				st.Routing = choice
			}
			next := m.router.Next(st)
			if next == StepDiscover {
				restarts++
				if restarts > m.maxRestarts {
					return m.abort(ctx, span, st, StepRoute,
						fmt.Errorf("%w: %d", ErrRestartLimit, m.maxRestarts))
				}
				metrics.RecordRestart()
			}
			m.logger.DebugContext(ctx, "routed", slog.String("next", next.String()))
			step = next
			continue
		}

		stage, ok := m.stages[step]
		if !ok {
			return m.abort(ctx, span, st, step, fmt.Errorf("no stage registered for %q", step))
		}

		st.Step = step
		m.emit(step, stageMessage(step, st))
		if err := m.execute(ctx, stage, st); err != nil {
			return m.abort(ctx, span, st, step, err)
		}

		if step == StepDiscover && m.feedback != nil {
			selected, err := m.feedback.Select(ctx, st)
			if err != nil {
				return m.abort(ctx, span, st, step, err)
			}
			st.Selected = selected
		}

		step = successor(step)
	}
}

func (m *Machine) execute(ctx context.Context, stage Stage, st *State) error {
	name := stage.Name().String()
	ctx, span := tracing.GetTracer().Start(ctx, "pipeline.stage."+name)
	defer span.End()

	start := time.Now()
	err := stage.Execute(ctx, st)
	metrics.RecordStage(name, err == nil, time.Since(start))

	span.SetAttributes(attribute.Int("pipeline.records", len(st.Records)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (m *Machine) abort(ctx context.Context, span trace.Span, st *State, step Step, err error) (*State, error) {
	st.Step = StepAborted
	st.LastError = err.Error()

	m.logger.ErrorContext(ctx, "pipeline aborted",
		slog.String("step", step.String()),
		slog.Any("error", err))
	m.emit(StepAborted, st.LastError)
	metrics.RecordPipelineRun(true)
	span.SetStatus(codes.Error, st.LastError)

	if errors.Is(err, ErrAborted) {
		return st, err
	}
	return st, fmt.Errorf("%w at %s: %w", ErrAborted, step, err)
}

func (m *Machine) emit(step Step, msg string) {
	if m.observer == nil {
		return
	}
	m.observer(Event{Step: step, Message: msg, Percent: step.Percent()})
}

// successor is the fixed linear order. Route and Terminal are handled by Run.
func successor(step Step) Step {
	switch step {
	case StepDiscover:
		return StepCompileContext
	case StepCompileContext:
		return StepPlan
	case StepPlan:
		return StepPrompt
	case StepPrompt:
		return StepRoute
	default:
		return StepTerminal
	}
}

func stageMessage(step Step, st *State) string {
	switch step {
	case StepDiscover:
		return fmt.Sprintf("searching issues for %d skills", len(st.Skills))
	case StepCompileContext:
		return fmt.Sprintf("fetching %d issues", len(st.Selected))
	case StepPlan:
		return fmt.Sprintf("planning %d issues", len(st.Records))
	case StepPrompt:
		return fmt.Sprintf("writing prompts for %d issues", len(st.Records))
	case StepDraftReport:
		return fmt.Sprintf("drafting %d proposals", len(st.Records))
	default:
		return step.String()
	}
}
