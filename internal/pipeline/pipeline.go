package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/policyscan/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the report to modify.
	Do(ctx context.Context, scan *model.ScanReport) error

	// Name returns the step's stage name for logging and error reporting.
	Name() string
}

// Conditional is implemented by steps that only apply when an earlier step
// produced their input. A step whose ShouldRun returns false is skipped
// and not recorded as performed.
type Conditional interface {
	ShouldRun(scan *model.ScanReport) bool
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence and stops at the first
// failure. Cancellation is checked before each step.
//
// The returned error is a *StageError naming the failing step; it is also
// recorded in the report together with the stage name. FinishedAt is set
// when Execute returns.
func (p *Pipeline) Execute(ctx context.Context, scan *model.ScanReport) error {
	defer func() {
		scan.FinishedAt = time.Now()
	}()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			return p.fail(scan, step, err)
		}

		if c, ok := step.(Conditional); ok && !c.ShouldRun(scan) {
			p.logger.Debug("skipping step",
				"step", step.Name(),
				"site", scan.BaseURL,
			)
			continue
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"site", scan.BaseURL,
		)

		if err := step.Do(ctx, scan); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"site", scan.BaseURL,
				"error", err,
			)
			return p.fail(scan, step, err)
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"site", scan.BaseURL,
		)

		scan.PerformedSteps = append(scan.PerformedSteps, step.Name())
	}

	return nil
}

// fail wraps err with the step's stage and records it in the report.
func (p *Pipeline) fail(scan *model.ScanReport, step Step, err error) error {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		stageErr = &StageError{Stage: step.Name(), Err: err}
	}

	scan.Error = stageErr
	scan.ErrorMessage = stageErr.Error()
	scan.FailedStage = stageErr.Stage

	return stageErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
