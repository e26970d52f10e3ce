package inference

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonnison/tower-jumps/internal/model"
)

// BatchItem is the outcome for one subscriber of a batch run.
type BatchItem struct {
	SubscriberID int64   `json:"subscriber" yaml:"subscriber"`
	Result       *Result `json:"result,omitempty" yaml:"result,omitempty"`
	Err          string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// BatchReport collects a batch run's results in input order.
type BatchReport struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Method    model.Method  `json:"method" yaml:"method"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Items     []BatchItem   `json:"items" yaml:"items"`
	Failed    int           `json:"failed" yaml:"failed"`
	NoSignal  int           `json:"no_signal" yaml:"no_signal"`
}

// BatchRunner runs inference for many subscribers with bounded concurrency.
type BatchRunner struct {
	svc         *Service
	concurrency int
}

// NewBatchRunner creates a runner. Concurrency below 1 runs serially.
func NewBatchRunner(svc *Service, concurrency int) *BatchRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchRunner{svc: svc, concurrency: concurrency}
}

// Run infers every subscriber. Per-subscriber failures are recorded in the
// report; only an unknown method or a cancelled context fails the run.
func (b *BatchRunner) Run(ctx context.Context, subscriberIDs []int64, method string, filter model.PingFilter) (*BatchReport, error) {
	strategy, err := b.svc.Resolve(method)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{
		RunID:     uuid.New().String(),
		Method:    strategy.Method(),
		StartedAt: time.Now().UTC(),
		Items:     make([]BatchItem, len(subscriberIDs)),
	}
	log := zap.L().With(
		zap.String("component", "inference.batch"),
		zap.String("run_id", report.RunID),
	)
	log.Info("batch inference started",
		zap.Int("subscribers", len(subscriberIDs)),
		zap.String("method", strategy.Name()),
		zap.Int("concurrency", b.concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, id := range subscriberIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item := BatchItem{SubscriberID: id}
			res, err := b.svc.Infer(gctx, Request{
				SubscriberID: id,
				Filter:       filter,
				Method:       method,
				Output:       OutputSummary,
			})
			if err != nil {
				log.Warn("subscriber inference failed", zap.Int64("subscriber_id", id), zap.Error(err))
				item.Err = err.Error()
			} else {
				res.Pings = nil
				item.Result = res
			}
			report.Items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "inference: batch run")
	}

	for _, it := range report.Items {
		switch {
		case it.Err != "":
			report.Failed++
		case it.Result.InsufficientData():
			report.NoSignal++
		}
	}
	report.Duration = time.Since(report.StartedAt)
	log.Info("batch inference complete",
		zap.Int("failed", report.Failed),
		zap.Int("no_signal", report.NoSignal),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}
