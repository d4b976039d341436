package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/webswarm/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each seeing the session state left by
// the previous ones.
type Step interface {
	// Do executes the step. Soft failures are recorded on the session or
	// reported to the stats sink; only conditions that make the remaining
	// steps pointless are returned as errors.
	Do(ctx context.Context, session *model.UserSession) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps for one user.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
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
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in order for session. Cancellation is checked
// before each step. The first step error is recorded on the session and,
// unless continueOnError is set, returned.
func (p *Pipeline) Execute(ctx context.Context, session *model.UserSession) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Debug("pipeline cancelled",
				"step", step.Name(),
				"user", session.ID,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step", "step", step.Name(), "user", session.ID)

		if err := step.Do(ctx, session); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("step failed",
				"step", step.Name(),
				"user", session.ID,
				"error", err,
			)
			session.SetError(err)
			if !p.continueOnError {
				return err
			}
		}
	}
	return nil
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
