package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/wordalign/internal/align"
	"github.com/valpere/wordalign/internal/corpus"
)

// Trainer trains one model from sentence pairs.
type Trainer interface {
	Train(ctx context.Context, pairs []corpus.SentencePair, opts align.Options) (*align.Model, error)
}

// TrainerFunc adapts a function to Trainer.
type TrainerFunc func(ctx context.Context, pairs []corpus.SentencePair, opts align.Options) (*align.Model, error)

func (f TrainerFunc) Train(ctx context.Context, pairs []corpus.SentencePair, opts align.Options) (*align.Model, error) {
	return f(ctx, pairs, opts)
}

type OrchestratorConfig struct {
	// Timeout bounds each job; zero means no limit.
	Timeout time.Duration
	Options align.Options
}

// Job is one direction to train.
type Job struct {
	Direction corpus.Direction
	Pairs     []corpus.SentencePair
}

// Outcome is the result of one job.
type Outcome struct {
	Direction corpus.Direction
	Model     *align.Model
	Duration  time.Duration
	Err       error
}

type OrchestratorResult struct {
	// Outcomes are in job order.
	Outcomes  []Outcome
	Errors    []error
	Succeeded int
	Failed    int
}

// Orchestrator trains independent directions concurrently. Directions share
// no state, so each job runs in its own goroutine.
type Orchestrator struct {
	trainer Trainer
	config  OrchestratorConfig
	logger  *zap.Logger
}

// New returns an orchestrator. A nil trainer uses align.Train.
func New(trainer Trainer, config OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if trainer == nil {
		trainer = TrainerFunc(align.Train)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		trainer: trainer,
		config:  config,
		logger:  logger,
	}
}

// BothDirections builds the forward and reverse jobs for a parallel corpus.
func BothDirections(dir corpus.Direction, source, target [][]string) ([]Job, error) {
	forward, err := corpus.Align(source, target, false)
	if err != nil {
		return nil, err
	}
	reverse, err := corpus.Align(source, target, true)
	if err != nil {
		return nil, err
	}
	return []Job{
		{Direction: dir, Pairs: forward},
		{Direction: dir.Reverse(), Pairs: reverse},
	}, nil
}

func (o *Orchestrator) Execute(ctx context.Context, jobs []Job) *OrchestratorResult {
	result := &OrchestratorResult{
		Outcomes: make([]Outcome, len(jobs)),
		Errors:   make([]error, 0),
	}

	type resultChan struct {
		index   int
		outcome Outcome
	}

	resultChanSlice := make(chan resultChan, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(index int, job Job) {
			defer wg.Done()

			jobCtx, cancel := ctx, context.CancelFunc(func() {})
			if o.config.Timeout > 0 {
				jobCtx, cancel = context.WithTimeout(ctx, o.config.Timeout)
			}
			defer cancel()

			opts := o.config.Options
			opts.Logger = o.logger.With(zap.String("direction", job.Direction.String()))

			start := time.Now()
			model, err := o.trainer.Train(jobCtx, job.Pairs, opts)
			resultChanSlice <- resultChan{index: index, outcome: Outcome{
				Direction: job.Direction,
				Model:     model,
				Duration:  time.Since(start),
				Err:       err,
			}}
		}(i, job)
	}

	go func() {
		wg.Wait()
		close(resultChanSlice)
	}()

	for rc := range resultChanSlice {
		result.Outcomes[rc.index] = rc.outcome
		if rc.outcome.Err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", rc.outcome.Direction, rc.outcome.Err))
			result.Failed++
			o.logger.Error("training failed",
				zap.String("direction", rc.outcome.Direction.String()),
				zap.Duration("took", rc.outcome.Duration),
				zap.Error(rc.outcome.Err))
		} else {
			result.Succeeded++
			o.logger.Info("training finished",
				zap.String("direction", rc.outcome.Direction.String()),
				zap.Duration("took", rc.outcome.Duration))
		}
	}

	return result
}
