// Package pipeline runs one receive, build and load cycle.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"loginetl/internal/event"
	"loginetl/internal/logging"
	"loginetl/internal/metrics"
	"loginetl/internal/queue"
	"loginetl/internal/storage"
	"loginetl/pkg/records"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeLoaded    Outcome = "loaded"
	OutcomeNoMessage Outcome = "no_message"
	OutcomeFailed    Outcome = "failed"
)

// Builder turns one raw body into normalized records.
type Builder interface {
	Build(body []byte) ([]records.Record, error)
}

// LoaderOpener connects to the sink. The returned close func must be called
// once the load is done.
type LoaderOpener func(ctx context.Context) (storage.Loader, func(), error)

// Result summarizes a run.
type Result struct {
	Outcome     Outcome
	MessageID   string
	Fingerprint string
	Received    int // messages returned by the source
	Staged      int64
	Upserted    int64
}

// Driver wires a source, a builder and a sink for a single run. It holds no
// state between runs.
type Driver struct {
	Job        string
	Source     queue.Source
	Builder    Builder
	OpenLoader LoaderOpener
	Log        *zap.Logger
}

// Run receives at most one batch of messages and processes the first. The
// sink is only opened once a record has been built. Failures are logged
// and returned unchanged so callers can classify them with errors.Is.
func (d *Driver) Run(ctx context.Context) (res Result, err error) {
	log := logging.OrNop(d.Log)
	defer func() {
		if err != nil {
			res.Outcome = OutcomeFailed
			log.Error("run failed",
				zap.String("message_id", res.MessageID),
				zap.String("fingerprint", res.Fingerprint),
				zap.Error(err))
		}
		metrics.RecordOutcome(d.Job, string(res.Outcome))
	}()

	start := time.Now()
	msgs, err := d.Source.Receive(ctx)
	metrics.RecordStep(d.Job, "receive", err, time.Since(start))
	if err != nil {
		return res, err
	}
	res.Received = len(msgs)
	metrics.RecordRows(d.Job, "received", int64(len(msgs)))

	if len(msgs) == 0 {
		log.Info("No messages available in the queue.")
		res.Outcome = OutcomeNoMessage
		return res, nil
	}

	msg := msgs[0]
	res.MessageID = msg.ID
	res.Fingerprint = event.Fingerprint(msg.Body)
	log = log.With(zap.String("message_id", res.MessageID), zap.String("fingerprint", res.Fingerprint))
	if len(msgs) > 1 {
		log.Debug("processing first message only", zap.Int("received", len(msgs)))
	}

	start = time.Now()
	recs, err := d.Builder.Build(msg.Body)
	metrics.RecordStep(d.Job, "build", err, time.Since(start))
	if err != nil {
		metrics.RecordRows(d.Job, "rejected", 1)
		return res, err
	}
	log.Debug("built records", zap.Int("count", len(recs)))

	start = time.Now()
	lr, err := d.load(ctx, recs)
	metrics.RecordStep(d.Job, "load", err, time.Since(start))
	if err != nil {
		return res, err
	}

	res.Staged, res.Upserted = lr.Staged, lr.Upserted
	res.Outcome = OutcomeLoaded
	metrics.RecordRows(d.Job, "loaded", lr.Staged)
	metrics.RecordRows(d.Job, "upserted", lr.Upserted)
	log.Info("run complete", zap.Int64("staged", lr.Staged), zap.Int64("upserted", lr.Upserted))
	return res, nil
}

func (d *Driver) load(ctx context.Context, recs []records.Record) (storage.LoadResult, error) {
	loader, closeFn, err := d.OpenLoader(ctx)
	if err != nil {
		return storage.LoadResult{}, err
	}
	defer closeFn()
	return loader.Load(ctx, recs)
}
