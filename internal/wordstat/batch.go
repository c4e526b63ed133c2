package wordstat

import (
	"context"

	"go.uber.org/zap"

	"github.com/kvlab/wordstat-ingest/internal/metrics"
)

// TopBatch fetches top related phrases for every phrase in input order.
// The item count must not exceed the batch cap; exceeding it fails the
// whole call before any remote request. Per-item failures (validation,
// transport, remote API) are recorded against the phrase and processing
// continues. The pacing delay runs after every item, the last included.
func (c *Connector) TopBatch(ctx context.Context, phrases []string, opts TopOptions) (TopBatch, error) {
	if len(phrases) > c.maxBatch {
		return TopBatch{}, &ValidationError{Field: "phrases", Value: len(phrases)}
	}

	batch := TopBatch{
		Phrases: append([]string(nil), phrases...),
		Results: make(map[string]TopOutcome, len(phrases)),
	}
	for _, phrase := range phrases {
		c.logger.Info("fetching top requests", zap.String("phrase", phrase))
		outcome := TopOutcome{Phrase: phrase}
		if err := c.validator.Validate("", opts.Regions, opts.Devices); err != nil {
			outcome.Err = err
		} else if result, err := c.gw.TopRequests(ctx, phrase, opts.Regions, opts.Devices); err != nil {
			outcome.Err = err
		} else {
			outcome.Result = result
		}
		c.recordOutcome("top", phrase, outcome.Err, &batch.Counters)
		batch.Results[phrase] = outcome
		c.sleep(c.pause)
	}
	c.logger.Info("top batch finished",
		zap.Int("succeeded", batch.Counters.Succeeded),
		zap.Int("failed", batch.Counters.Failed),
	)
	return batch, nil
}

// DynamicsBatch fetches a search-volume series for every phrase in input
// order, with the same cap, pacing and per-item isolation as TopBatch.
func (c *Connector) DynamicsBatch(ctx context.Context, phrases []string, opts DynamicsOptions) (DynamicsBatch, error) {
	if len(phrases) > c.maxBatch {
		return DynamicsBatch{}, &ValidationError{Field: "phrases", Value: len(phrases)}
	}

	batch := DynamicsBatch{
		Phrases: append([]string(nil), phrases...),
		Results: make(map[string]DynamicsOutcome, len(phrases)),
	}
	for _, phrase := range phrases {
		c.logger.Info("fetching dynamics", zap.String("phrase", phrase))
		outcome := DynamicsOutcome{Phrase: phrase}
		if err := c.validator.Validate(opts.Period, opts.Regions, opts.Devices); err != nil {
			outcome.Err = err
		} else {
			result, err := c.gw.Dynamics(ctx, DynamicsQuery{
				Phrase:   phrase,
				Period:   opts.Period,
				FromDate: opts.FromDate,
				ToDate:   opts.ToDate,
				Regions:  opts.Regions,
				Devices:  opts.Devices,
			})
			if err != nil {
				outcome.Err = err
			} else {
				outcome.Result = result
			}
		}
		c.recordOutcome("dynamics", phrase, outcome.Err, &batch.Counters)
		batch.Results[phrase] = outcome
		c.sleep(c.pause)
	}
	c.logger.Info("dynamics batch finished",
		zap.Int("succeeded", batch.Counters.Succeeded),
		zap.Int("failed", batch.Counters.Failed),
	)
	return batch, nil
}

// RunRequests executes a heterogeneous batch of {method, payload} items
// and returns outcomes at the same positions as the inputs. An unknown
// method is a per-item validation error, not a batch failure.
func (c *Connector) RunRequests(ctx context.Context, requests []BatchRequest) ([]BatchOutcome, Counters, error) {
	if len(requests) > c.maxBatch {
		return nil, Counters{}, &ValidationError{Field: "requests", Value: len(requests)}
	}

	outcomes := make([]BatchOutcome, 0, len(requests))
	var counters Counters
	for _, req := range requests {
		c.logger.Info("running batch request",
			zap.String("method", req.Method),
			zap.String("phrase", req.Payload.Phrase),
		)
		outcome := c.runRequest(ctx, req)
		c.recordOutcome(req.Method, outcome.Phrase, outcome.Err, &counters)
		outcomes = append(outcomes, outcome)
		c.sleep(c.pause)
	}
	c.logger.Info("mixed batch finished",
		zap.Int("succeeded", counters.Succeeded),
		zap.Int("failed", counters.Failed),
	)
	return outcomes, counters, nil
}

func (c *Connector) runRequest(ctx context.Context, req BatchRequest) BatchOutcome {
	outcome := BatchOutcome{Method: req.Method, Phrase: req.Payload.Phrase}
	if err := c.validator.Validate(req.Payload.Period, req.Payload.Regions, req.Payload.Devices); err != nil {
		outcome.Err = err
		return outcome
	}

	switch req.Method {
	case MethodTopRequests:
		result, err := c.gw.TopRequests(ctx, req.Payload.Phrase, req.Payload.Regions, req.Payload.Devices)
		if err != nil {
			outcome.Err = err
		} else {
			outcome.Top = &result
		}
	case MethodDynamics:
		result, err := c.gw.Dynamics(ctx, DynamicsQuery{
			Phrase:   req.Payload.Phrase,
			Period:   req.Payload.Period,
			FromDate: req.Payload.FromDate,
			ToDate:   req.Payload.ToDate,
			Regions:  req.Payload.Regions,
			Devices:  req.Payload.Devices,
		})
		if err != nil {
			outcome.Err = err
		} else {
			outcome.Dynamics = &result
		}
	default:
		outcome.Err = &ValidationError{Field: "method", Value: req.Method}
	}
	return outcome
}

func (c *Connector) recordOutcome(kind, phrase string, err error, counters *Counters) {
	if err != nil {
		counters.Failed++
		metrics.BatchItemProcessed(kind, "error")
		c.logger.Warn("batch item failed",
			zap.String("kind", kind),
			zap.String("phrase", phrase),
			zap.Error(err),
		)
		return
	}
	counters.Succeeded++
	metrics.BatchItemProcessed(kind, "ok")
}
