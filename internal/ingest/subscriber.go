package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/saksham1508/CyberSentinelAI/internal/metrics"
	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// Subjects used on the candidate side of the boundary.
const (
	SubjectRawCandidates = "threats.raw"
	QueueGroup           = "classifier"
)

// RunFunc hands a validated candidate batch to the pipeline.
type RunFunc func(ctx context.Context, candidates []model.Threat) error

// Subscriber consumes raw threat candidates from NATS, validates them
// at the boundary, and feeds batches into the pipeline.
type Subscriber struct {
	nc        *nats.Conn
	validator *Validator
	run       RunFunc
	logger    *slog.Logger
	metrics   *metrics.Metrics
	sub       *nats.Subscription
}

// NewSubscriber creates a candidate subscriber.
func NewSubscriber(nc *nats.Conn, validator *Validator, run RunFunc, logger *slog.Logger, m *metrics.Metrics) *Subscriber {
	return &Subscriber{nc: nc, validator: validator, run: run, logger: logger, metrics: m}
}

// Subscribe starts the queue subscription and blocks until the context
// is cancelled, then drains.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	sub, err := s.nc.QueueSubscribe(SubjectRawCandidates, QueueGroup, func(msg *nats.Msg) {
		s.handleMessage(ctx, msg)
	})
	if err != nil {
		s.logger.Error("Failed to subscribe to raw candidates", "error", err)
		return err
	}
	s.sub = sub
	s.logger.Info("Subscribed to raw candidates", "subject", SubjectRawCandidates, "queue", QueueGroup)

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		s.logger.Error("Error draining subscription", "error", err)
		return err
	}
	s.logger.Info("Candidate subscription drained")
	return nil
}

// handleMessage accepts either a single candidate object or an array of
// candidates. Invalid entries are dropped and counted; valid ones from
// the same message still go through.
func (s *Subscriber) handleMessage(ctx context.Context, msg *nats.Msg) {
	docs, ok := s.decode(msg.Data)
	if !ok {
		if s.metrics != nil {
			s.metrics.CandidatesInvalidTotal.Inc()
		}
		return
	}

	var batch []model.Threat
	for _, doc := range docs {
		if s.metrics != nil {
			s.metrics.CandidatesTotal.Inc()
		}
		if err := s.validator.Validate(doc); err != nil {
			s.logger.Warn("Dropping invalid candidate", "error", err)
			if s.metrics != nil {
				s.metrics.CandidatesInvalidTotal.Inc()
			}
			continue
		}
		raw, err := reparse(doc)
		if err != nil {
			s.logger.Warn("Dropping undecodable candidate", "error", err)
			if s.metrics != nil {
				s.metrics.CandidatesInvalidTotal.Inc()
			}
			continue
		}
		batch = append(batch, raw.Threat())
	}

	if len(batch) == 0 {
		return
	}

	if err := s.run(ctx, batch); err != nil {
		s.logger.Error("Pipeline run failed for candidate batch", "count", len(batch), "error", err)
	}
}

// decode parses the payload into generic documents for schema
// validation.
func (s *Subscriber) decode(data []byte) ([]interface{}, bool) {
	var list []interface{}
	if err := json.Unmarshal(data, &list); err == nil {
		return list, true
	}
	var single interface{}
	if err := json.Unmarshal(data, &single); err != nil {
		s.logger.Warn("Dropping unparseable candidate message", "error", err)
		return nil, false
	}
	if _, ok := single.(map[string]interface{}); !ok {
		s.logger.Warn("Dropping candidate message with unexpected shape")
		return nil, false
	}
	return []interface{}{single}, true
}

func reparse(doc interface{}) (RawCandidate, error) {
	var raw RawCandidate
	data, err := json.Marshal(doc)
	if err != nil {
		return raw, err
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return raw, err
	}
	return raw, nil
}
