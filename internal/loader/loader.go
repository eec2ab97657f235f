// Package loader writes transformed documents to the destination in batches.
package loader

import (
	"context"
	"time"

	"github.com/nushungry/review-migrator/internal/config"
	"github.com/nushungry/review-migrator/internal/docstore"
	migerrors "github.com/nushungry/review-migrator/internal/errors"
	"github.com/nushungry/review-migrator/internal/logging"
	"github.com/nushungry/review-migrator/internal/models"
	"github.com/nushungry/review-migrator/internal/monitoring"
	"github.com/rs/zerolog"
)

// Result counts the outcome of loading one sequence of documents.
// Inserted + Failed always equals the number of documents submitted.
type Result struct {
	Inserted   int `json:"inserted"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"` // subset of Failed
	Batches    int `json:"batches"`
}

// Loader submits documents as unordered bulk inserts
type Loader struct {
	batchSize int
	logger    zerolog.Logger
}

// New creates a loader. A batch size below 1 falls back to the default.
func New(batchSize int) *Loader {
	if batchSize < 1 {
		batchSize = config.DefaultBatchSize
	}
	return &Loader{
		batchSize: batchSize,
		logger:    logging.NewLogger("loader"),
	}
}

// BatchSize returns the effective batch size
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// Load partitions docs into contiguous batches and inserts each one.
// Write failures are absorbed into the result and never retried. The only
// error returned is ctx's, once it is done; no further batch is submitted
// and the result covers the batches attempted so far.
func (l *Loader) Load(ctx context.Context, coll docstore.Collection, docs []models.Document) (Result, error) {
	var total Result

	for start := 0; start < len(docs); start += l.batchSize {
		if err := ctx.Err(); err != nil {
			l.logger.Warn().
				Str("collection", coll.Name()).
				Int("batches", total.Batches).
				Int("remaining", len(docs)-start).
				Msg("Load interrupted")
			return total, err
		}

		end := start + l.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		total.Batches++

		res := l.loadBatch(ctx, coll, batch, total.Batches)
		total.Inserted += res.Inserted
		total.Failed += res.Failed
		total.Duplicates += res.Duplicates
	}

	return total, nil
}

// Classify maps a destination write error code onto the migration taxonomy
func Classify(code int) migerrors.ErrorCode {
	if migerrors.IsDuplicateKey(code) {
		return migerrors.ErrDuplicate
	}
	return migerrors.ErrWrite
}

func (l *Loader) loadBatch(ctx context.Context, coll docstore.Collection, batch []models.Document, n int) Result {
	start := time.Now()
	res, err := coll.InsertUnordered(ctx, batch)
	latency := time.Since(start)

	var out Result
	if err != nil {
		out.Failed = len(batch)
		logging.LogError(l.logger, migerrors.New(migerrors.ErrWrite, coll.Name(), "bulk insert failed", err), "load", "insert_batch")
	} else {
		out.Inserted = res.Inserted
		out.Failed = len(batch) - res.Inserted
		for _, we := range res.WriteErrors {
			if Classify(we.Code) == migerrors.ErrDuplicate {
				out.Duplicates++
				continue
			}
			logging.LogWriteAnomaly(l.logger, coll.Name(), we.Index, we.Code, we.Message)
		}
		if wc := res.WriteConcern; wc != nil {
			logging.LogWriteAnomaly(l.logger, coll.Name(), wc.Index, wc.Code, wc.Message)
		}
	}

	monitoring.RecordBatch(coll.Name(), out.Inserted, out.Failed, out.Duplicates, latency)
	logging.LogBatch(l.logger, &logging.BatchLogEntry{
		Collection: coll.Name(),
		Batch:      n,
		Size:       len(batch),
		Inserted:   out.Inserted,
		Failed:     out.Failed,
		Duplicates: out.Duplicates,
		Latency:    latency,
	})

	return out
}
