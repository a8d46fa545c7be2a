package provisioning

import (
	"fmt"
	"time"
)

// Pipeline is an ordered list of phases.
type Pipeline struct {
	Phases []Phase
}

// NewPipeline creates a pipeline running phases in the given order.
func NewPipeline(phases ...Phase) *Pipeline {
	return &Pipeline{Phases: phases}
}

// Run executes all phases sequentially and stops at the first failure or
// once ctx is cancelled.
func (p *Pipeline) Run(ctx *Context) error {
	start := time.Now()

	for i, phase := range p.Phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s phase not started: %w", phase.Name(), err)
		}

		phaseStart := time.Now()
		LogPhaseStart(ctx.Observer, phase.Name())
		ctx.Observer.Progress(phase.Name(), i+1, len(p.Phases))

		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, phase.Name(), err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		took := time.Since(phaseStart)
		ctx.Metrics.PhaseCompleted(phase.Name(), took)
		LogPhaseComplete(ctx.Observer, phase.Name(), took)
	}

	ctx.Observer.Event(Event{
		Type:    EventPipelineCompleted,
		Message: fmt.Sprintf("prepared in %v", time.Since(start).Round(time.Millisecond)),
	})
	return nil
}
