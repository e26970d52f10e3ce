package inference

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/model"
)

// PingSource supplies a subscriber's pings ordered by time, restricted to
// the inclusive filter window.
type PingSource interface {
	ListPings(ctx context.Context, subscriberID int64, filter model.PingFilter) ([]model.Ping, error)
}

// Recorder observes inference outcomes. The metrics package implements it.
type Recorder interface {
	ObserveInference(method model.Method, outcome string, pings int)
}

// Outcome labels passed to Recorder.
const (
	OutcomeInterval = "interval"
	OutcomeNoSignal = "no_signal"
	OutcomeError    = "error"
)

// Request describes one inference call. Method is the raw client value; an
// empty Method selects the service default.
type Request struct {
	SubscriberID int64
	Filter       model.PingFilter
	Method       string
	Output       Output
}

// Result is the outcome of an inference call. Interval is nil when the
// pings carried no usable signal; Timeline is only set for OutputTimeline.
type Result struct {
	SubscriberID int64            `json:"subscriber" yaml:"subscriber"`
	Method       model.Method     `json:"method" yaml:"method"`
	Output       Output           `json:"output" yaml:"output"`
	Interval     *model.Interval  `json:"interval" yaml:"interval"`
	Timeline     []model.Interval `json:"timeline,omitempty" yaml:"timeline,omitempty"`
	Pings        []model.Ping     `json:"pings" yaml:"pings"`
}

// InsufficientData reports whether no interval could be inferred.
func (r *Result) InsufficientData() bool {
	return r.Interval == nil
}

// Service resolves strategies and runs them over pings from a PingSource.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	registry      *Registry
	pings         PingSource
	defaultMethod model.Method
	output        Output
	recorder      Recorder
	log           *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaultMethod sets the method used when a request names none.
func WithDefaultMethod(m model.Method) ServiceOption {
	return func(s *Service) { s.defaultMethod = m }
}

// WithOutput sets the output mode used when a request names none.
func WithOutput(o Output) ServiceOption {
	return func(s *Service) { s.output = o }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a Service. Defaults: clustering, summary output.
func NewService(reg *Registry, pings PingSource, opts ...ServiceOption) *Service {
	s := &Service{
		registry:      reg,
		pings:         pings,
		defaultMethod: model.MethodClustering,
		output:        OutputSummary,
		log:           zap.L().With(zap.String("component", "inference")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the strategy for a raw method id, falling back to the
// default when raw is empty.
func (s *Service) Resolve(raw string) (Strategy, error) {
	if raw == "" {
		raw = strconv.Itoa(int(s.defaultMethod))
	}
	return s.registry.ResolveString(raw)
}

// Infer fetches the subscriber's pings and runs the requested strategy.
// Unknown methods return an UnknownMethodError before any ping is read.
func (s *Service) Infer(ctx context.Context, req Request) (*Result, error) {
	if err := req.Filter.Validate(); err != nil {
		return nil, err
	}
	strategy, err := s.Resolve(req.Method)
	if err != nil {
		s.log.Info("rejected inference request",
			zap.Int64("subscriber_id", req.SubscriberID),
			zap.String("model_id", req.Method),
			zap.Error(err),
		)
		return nil, err
	}

	pings, err := s.pings.ListPings(ctx, req.SubscriberID, req.Filter)
	if err != nil {
		s.record(strategy.Method(), OutcomeError, 0)
		return nil, eris.Wrapf(err, "inference: load pings for subscriber %d", req.SubscriberID)
	}

	output := req.Output
	if output == "" {
		output = s.output
	}

	res := s.Run(strategy, req.SubscriberID, pings, output)

	outcome := OutcomeInterval
	if res.InsufficientData() {
		outcome = OutcomeNoSignal
	}
	s.record(strategy.Method(), outcome, len(pings))
	s.log.Debug("inference complete",
		zap.Int64("subscriber_id", req.SubscriberID),
		zap.String("method", strategy.Name()),
		zap.Int("pings", len(pings)),
		zap.String("outcome", outcome),
	)
	return res, nil
}

// Run applies a resolved strategy to already loaded pings.
func (s *Service) Run(strategy Strategy, subscriberID int64, pings []model.Ping, output Output) *Result {
	res := &Result{
		SubscriberID: subscriberID,
		Method:       strategy.Method(),
		Output:       output,
		Pings:        pings,
	}
	if res.Pings == nil {
		res.Pings = []model.Ping{}
	}
	if output != OutputTimeline {
		res.Interval = strategy.Infer(subscriberID, pings)
		return res
	}

	switch st := strategy.(type) {
	case SinglePassStrategy:
		res.Interval, res.Timeline = st.InferWithTimeline(subscriberID, pings)
	case TimelineStrategy:
		res.Interval = st.Infer(subscriberID, pings)
		if res.Interval != nil {
			res.Timeline = st.Timeline(subscriberID, pings)
		}
	default:
		res.Interval = strategy.Infer(subscriberID, pings)
		if res.Interval != nil {
			res.Timeline = []model.Interval{*res.Interval}
		}
	}
	if res.Interval == nil {
		res.Timeline = nil
	}
	return res
}

func (s *Service) record(m model.Method, outcome string, pings int) {
	if s.recorder != nil {
		s.recorder.ObserveInference(m, outcome, pings)
	}
}
