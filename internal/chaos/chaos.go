// Package chaos runs steady-state experiments against a running lending server.
package chaos

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyState is returned when the system is already outside its limits before
// any fault is injected.
var ErrSteadyState = errors.New("steady state invalid - aborting experiment")

// Experiment checks a hypothesis: the steady-state metrics stay within their limits while
// Inject runs, and every Check holds on the last sample once Rollback is done.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Inject      []Action
	Rollback    []Action
	Checks      []Assertion
	Duration    time.Duration
}

// Metric is a number read from the system under test.
type Metric struct {
	Name  string
	Read  func(context.Context) (float64, error)
	Limit Threshold
}

// Comparison relates a sampled value to a threshold bound.
type Comparison string

const (
	Less           Comparison = "<"
	LessOrEqual    Comparison = "<="
	Greater        Comparison = ">"
	GreaterOrEqual Comparison = ">="
	Equal          Comparison = "=="
)

type Threshold struct {
	Op    Comparison `json:"op"`
	Bound float64    `json:"bound"`
}

func Exactly(v float64) Threshold { return Threshold{Op: Equal, Bound: v} }
func AtMost(v float64) Threshold { return Threshold{Op: LessOrEqual, Bound: v} }
func Below(v float64) Threshold { return Threshold{Op: Less, Bound: v} }

// Allows reports whether v is within the threshold. An unknown comparison allows nothing.
func (t Threshold) Allows(v float64) bool {
	switch t.Op {
	case Less:
		return v < t.Bound
	case LessOrEqual:
		return v <= t.Bound
	case Greater:
		return v > t.Bound
	case GreaterOrEqual:
		return v >= t.Bound
	case Equal:
		return v == t.Bound
	}
	return false
}

// Action injects load or faults, or undoes them. Name labels its errors in the result.
type Action struct {
	Name string
	Run  func(context.Context) error
}

// Assertion is checked against the last sample of Metric.
type Assertion struct {
	Metric  string
	Holds   func(float64) bool
	Message string
}

type Result struct {
	Experiment       string              `json:"experiment"`
	Started          time.Time           `json:"started"`
	Finished         time.Time           `json:"finished"`
	Elapsed          time.Duration       `json:"elapsed"`
	SteadyStateValid bool                `json:"steady_state_valid"`
	HypothesisHeld   bool                `json:"hypothesis_held"`
	Violations       []Violation         `json:"violations"`
	FailedAssertions []string            `json:"failed_assertions,omitempty"`
	Samples          map[string][]Sample `json:"samples"`
	Errors           []ErrorEvent        `json:"errors"`
	MTTR             *time.Duration      `json:"mttr,omitempty"`
}

// Violation is a sample outside its metric's limit, or a failed read.
type Violation struct {
	Metric string    `json:"metric"`
	Limit  Threshold `json:"limit"`
	Actual float64   `json:"actual"`
	Err    string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

type Sample struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

type ErrorEvent struct {
	At     time.Time `json:"at"`
	Source string    `json:"source"`
	Error  string    `json:"error"`
}

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer         trace.Tracer
	logger         *slog.Logger
	sampleInterval time.Duration
	pause          time.Duration

	mu          sync.Mutex
	experiments []Experiment
	results     []Result
}

type Option func(*Engine)

// WithSampleInterval sets how often steady-state metrics are sampled while observing.
func WithSampleInterval(d time.Duration) Option {
	return func(e *Engine) { e.sampleInterval = d }
}

// WithPause sets the wait between experiments of a game day.
func WithPause(d time.Duration) Option {
	return func(e *Engine) { e.pause = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tracer:         otel.Tracer("libraledger/chaos"),
		logger:         slog.Default(),
		sampleInterval: time.Second,
		pause:          30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) RegisterExperiment(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

// Experiments returns the registered experiments.
func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

// Results returns every result recorded so far.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// RunExperiment checks the steady state, injects, observes for exp.Duration, rolls back and
// evaluates the checks. It fails with ErrSteadyState, before injecting anything, if a
// metric is already out of bounds.
func (e *Engine) RunExperiment(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		Experiment: exp.Name,
		Started:    time.Now(),
		Samples:    make(map[string][]Sample),
		Errors:     make([]ErrorEvent, 0),
	}

	span.AddEvent("steady_state")
	if violations := e.steadyState(ctx, exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		return result, ErrSteadyState
	}
	result.SteadyStateValid = true

	span.AddEvent("inject")
	result.run(ctx, span, exp.Inject)

	span.AddEvent("observe")
	e.observe(ctx, exp, result)

	span.AddEvent("rollback")
	result.run(ctx, span, exp.Rollback)

	span.AddEvent("check")
	result.FailedAssertions = result.failedChecks(exp.Checks)
	result.HypothesisHeld = len(result.FailedAssertions) == 0
	result.Finished = time.Now()
	result.Elapsed = result.Finished.Sub(result.Started)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

// reading is one read of a metric.
type reading struct {
	metric Metric
	value  float64
	err    error
}

func readAll(ctx context.Context, metrics []Metric) []reading {
	readings := make([]reading, len(metrics))
	for i, m := range metrics {
		v, err := m.Read(ctx)
		readings[i] = reading{metric: m, value: v, err: err}
	}
	return readings
}

// violation reports r as a Violation if it failed or is out of bounds.
func (r reading) violation(at time.Time) (Violation, bool) {
	v := Violation{Metric: r.metric.Name, Limit: r.metric.Limit, Actual: r.value, At: at}
	if r.err != nil {
		v.Actual, v.Err = 0, r.err.Error()
		return v, true
	}
	return v, !r.metric.Limit.Allows(r.value)
}

func (e *Engine) steadyState(ctx context.Context, metrics []Metric) []Violation {
	var violations []Violation
	at := time.Now()
	for _, r := range readAll(ctx, metrics) {
		if r.err != nil {
			e.logger.WarnContext(ctx, "steady state read failed", "metric", r.metric.Name, "error", r.err)
		}
		if v, bad := r.violation(at); bad {
			violations = append(violations, v)
		}
	}
	return violations
}

// observe samples the steady-state metrics every sample interval for exp.Duration, and
// once more at the end so short experiments still get a final reading. Failed reads are
// recorded as errors, not violations.
func (e *Engine) observe(ctx context.Context, exp Experiment, result *Result) {
	window, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()

	ticker := time.NewTicker(e.sampleInterval)
	defer ticker.Stop()

	var degradedAt time.Time
	sample := func() {
		healthy := true
		at := time.Now()
		for _, r := range readAll(ctx, exp.SteadyState) {
			if r.err != nil {
				result.recordError(r.metric.Name, r.err)
				continue
			}
			result.Samples[r.metric.Name] = append(result.Samples[r.metric.Name], Sample{At: at, Value: r.value})
			if v, bad := r.violation(at); bad {
				healthy = false
				result.Violations = append(result.Violations, v)
			}
		}

		switch {
		case result.MTTR != nil:
		case !healthy && degradedAt.IsZero():
			degradedAt = at
		case healthy && !degradedAt.IsZero():
			mttr := at.Sub(degradedAt)
			result.MTTR = &mttr
		}
	}

	for {
		select {
		case <-window.Done():
			if ctx.Err() == nil {
				sample()
			}
			return
		case <-ticker.C:
			sample()
		}
	}
}

// run executes actions in order; a failing action is recorded and the rest still run.
func (r *Result) run(ctx context.Context, span trace.Span, actions []Action) {
	for _, a := range actions {
		if err := a.Run(ctx); err != nil {
			r.recordError(a.Name, err)
			span.RecordError(err)
		}
	}
}

func (r *Result) recordError(source string, err error) {
	r.Errors = append(r.Errors, ErrorEvent{At: time.Now(), Source: source, Error: err.Error()})
}

// failedChecks returns the messages of the checks whose metric was never sampled or whose
// last sample does not hold.
func (r *Result) failedChecks(checks []Assertion) []string {
	var failed []string
	for _, c := range checks {
		samples := r.Samples[c.Metric]
		if len(samples) == 0 || !c.Holds(samples[len(samples)-1].Value) {
			failed = append(failed, c.Message)
		}
	}
	return failed
}

// GameDay is a named series of experiments.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
}

// RunGameDay runs every scenario in order, pausing between them. A scenario whose steady
// state is invalid is logged and skipped. It returns early only if ctx is cancelled.
func (e *Engine) RunGameDay(ctx context.Context, gameDay GameDay) ([]Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", gameDay.Name)),
	)
	defer span.End()

	e.logger.InfoContext(ctx, "starting game day", "name", gameDay.Name, "date", gameDay.Date)

	results := make([]Result, 0, len(gameDay.Scenarios))
	for i, scenario := range gameDay.Scenarios {
		if i > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(e.pause):
			}
		}

		e.logger.InfoContext(ctx, "running experiment",
			"index", i+1,
			"of", len(gameDay.Scenarios),
			"experiment", scenario.Name,
			"hypothesis", scenario.Hypothesis)

		result, err := e.RunExperiment(ctx, scenario)
		if err != nil {
			e.logger.ErrorContext(ctx, "experiment failed", "experiment", scenario.Name, "error", err)
			continue
		}
		e.logResult(ctx, result)
		results = append(results, *result)
	}

	return results, nil
}

func (e *Engine) logResult(ctx context.Context, result *Result) {
	attrs := []any{
		"experiment", result.Experiment,
		"hypothesis_held", result.HypothesisHeld,
		"violations", len(result.Violations),
		"errors", len(result.Errors),
		"elapsed", result.Elapsed,
	}
	if result.MTTR != nil {
		attrs = append(attrs, "mttr", *result.MTTR)
	}

	if !result.HypothesisHeld {
		attrs = append(attrs, "failed_assertions", result.FailedAssertions)
		e.logger.WarnContext(ctx, "hypothesis violated", attrs...)
		return
	}
	e.logger.InfoContext(ctx, "hypothesis held", attrs...)
}
