package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/wordalign/internal/align"
	"github.com/valpere/wordalign/internal/corpus"
)

type mockTrainer struct {
	trainFunc func(ctx context.Context, pairs []corpus.SentencePair, opts align.Options) (*align.Model, error)
	callCount atomic.Int32
}

func (m *mockTrainer) Train(ctx context.Context, pairs []corpus.SentencePair, opts align.Options) (*align.Model, error) {
	m.callCount.Add(1)
	if m.trainFunc != nil {
		return m.trainFunc(ctx, pairs, opts)
	}
	return &align.Model{Variant: opts.Variant, Pairs: len(pairs)}, nil
}

var frEn = corpus.Direction{From: "fr", To: "en"}

func TestOrchestrator_New(t *testing.T) {
	o := New(nil, OrchestratorConfig{Timeout: 10 * time.Second}, nil)
	if o == nil {
		t.Fatal("expected non-nil Orchestrator")
	}
	if o.trainer == nil || o.logger == nil {
		t.Error("expected defaults for trainer and logger")
	}
}

func TestOrchestrator_Execute_AllSucceed(t *testing.T) {
	mock := &mockTrainer{}
	o := New(mock, OrchestratorConfig{Options: align.Options{Iterations: 2}}, nil)

	jobs := []Job{
		{Direction: frEn, Pairs: make([]corpus.SentencePair, 3)},
		{Direction: frEn.Reverse(), Pairs: make([]corpus.SentencePair, 5)},
	}
	result := o.Execute(context.Background(), jobs)

	if result.Succeeded != 2 || result.Failed != 0 {
		t.Errorf("expected 2 succeeded, got %d/%d", result.Succeeded, result.Failed)
	}
	if mock.callCount.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", mock.callCount.Load())
	}
	if result.Outcomes[0].Direction != frEn || result.Outcomes[0].Model.Pairs != 3 {
		t.Errorf("outcomes out of job order: %+v", result.Outcomes[0])
	}
	if result.Outcomes[1].Model.Pairs != 5 {
		t.Errorf("unexpected second outcome: %+v", result.Outcomes[1])
	}
}

func TestOrchestrator_Execute_PartialFailure(t *testing.T) {
	mock := &mockTrainer{
		trainFunc: func(ctx context.Context, pairs []corpus.SentencePair, opts align.Options) (*align.Model, error) {
			if len(pairs) == 0 {
				return nil, corpus.ErrInput
			}
			return &align.Model{}, nil
		},
	}
	o := New(mock, OrchestratorConfig{}, nil)

	result := o.Execute(context.Background(), []Job{
		{Direction: frEn, Pairs: make([]corpus.SentencePair, 1)},
		{Direction: frEn.Reverse()},
	})

	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("expected 1/1, got %d/%d", result.Succeeded, result.Failed)
	}
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], corpus.ErrInput) {
		t.Errorf("expected wrapped ErrInput, got %v", result.Errors)
	}
	if result.Outcomes[1].Err == nil {
		t.Error("expected the failing outcome to carry its error")
	}
}

func TestOrchestrator_Execute_Timeout(t *testing.T) {
	mock := &mockTrainer{
		trainFunc: func(ctx context.Context, pairs []corpus.SentencePair, opts align.Options) (*align.Model, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	o := New(mock, OrchestratorConfig{Timeout: 20 * time.Millisecond}, nil)

	result := o.Execute(context.Background(), []Job{{Direction: frEn}})
	if result.Failed != 1 || !errors.Is(result.Outcomes[0].Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %+v", result.Outcomes[0])
	}
}

func TestOrchestrator_Execute_Concurrent(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	mock := &mockTrainer{
		trainFunc: func(ctx context.Context, pairs []corpus.SentencePair, opts align.Options) (*align.Model, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			if n == 2 {
				close(release)
			}
			select {
			case <-release:
			case <-time.After(time.Second):
			}
			running.Add(-1)
			return &align.Model{}, nil
		},
	}
	o := New(mock, OrchestratorConfig{}, nil)
	o.Execute(context.Background(), []Job{{Direction: frEn}, {Direction: frEn.Reverse()}})

	if peak.Load() != 2 {
		t.Errorf("expected both directions to train at once, peak %d", peak.Load())
	}
}

func TestOrchestrator_RealTrainer(t *testing.T) {
	jobs, err := BothDirections(frEn,
		[][]string{{"bonjour"}, {"bonjour"}}, [][]string{{"hello"}, {"hello"}})
	if err != nil {
		t.Fatalf("BothDirections failed: %v", err)
	}

	o := New(nil, OrchestratorConfig{Options: align.Options{Iterations: 5}}, nil)
	result := o.Execute(context.Background(), jobs)
	if result.Failed != 0 {
		t.Fatalf("unexpected failures: %v", result.Errors)
	}

	fwd, _ := result.Outcomes[0].Model.Table.Best("bonjour", true)
	rev, _ := result.Outcomes[1].Model.Table.Best("hello", true)
	if fwd.Target != "hello" || rev.Target != "bonjour" {
		t.Errorf("unexpected best translations: %+v / %+v", fwd, rev)
	}
}

func TestBothDirections_Mismatch(t *testing.T) {
	_, err := BothDirections(frEn, [][]string{{"a"}}, nil)
	if !errors.Is(err, corpus.ErrInput) {
		t.Errorf("expected ErrInput, got %v", err)
	}
}
