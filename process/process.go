// Package process runs the downstream pass over persisted records:
// text cleaning, location detection, and sentiment labeling. The
// collection core never touches these fields again once processing has
// claimed a record.
package process

import (
	"context"
	"log/slog"
	"strings"

	"gleaner/geo"
	"gleaner/store"
)

// Labeler assigns a sentiment label to cleaned text.
type Labeler interface {
	Label(ctx context.Context, text string) (label string, score float64, err error)
}

// Pipeline processes unlabeled records partition by partition.
type Pipeline struct {
	gw      *store.Gateway
	det     *geo.Detector
	labeler Labeler // nil skips sentiment, records still get cleaned
	batch   int
	log     *slog.Logger
}

// NewPipeline builds a Pipeline. labeler may be nil.
func NewPipeline(gw *store.Gateway, labeler Labeler, batch int, log *slog.Logger) *Pipeline {
	if batch <= 0 {
		batch = 50
	}
	return &Pipeline{
		gw:      gw,
		det:     geo.NewDetector(),
		labeler: labeler,
		batch:   batch,
		log:     log,
	}
}

// Run processes every listed partition and returns the total number of
// records it completed.
func (p *Pipeline) Run(ctx context.Context, keys []string) (int, error) {
	total := 0
	for _, key := range keys {
		n, err := p.Partition(ctx, key)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Partition drains the unprocessed records of one partition in batches.
func (p *Pipeline) Partition(ctx context.Context, key string) (int, error) {
	log := p.log.With("partition", key)
	done := 0

	for {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		pending, err := p.gw.Unprocessed(ctx, key, p.batch)
		if err != nil {
			return done, err
		}
		if len(pending) == 0 {
			break
		}

		advanced := 0
		for _, rec := range pending {
			if err := ctx.Err(); err != nil {
				return done, err
			}
			if err := p.gw.MarkProcessed(ctx, key, p.process(ctx, rec)); err != nil {
				log.Error("mark processed failed", "id", rec.ID, "error", err)
				continue
			}
			done++
			advanced++
		}
		// A batch where nothing was marked would come back identical
		// from Unprocessed; stop instead of spinning on it.
		if advanced == 0 {
			break
		}
	}

	if done > 0 {
		log.Info("partition processed", "records", done)
	}
	return done, nil
}

func (p *Pipeline) process(ctx context.Context, rec store.Record) store.Record {
	rec.CleanText = strings.ToLower(CleanText(rec.Text))

	if rec.Location.City == "" && rec.Location.Province == "" {
		detected := p.det.Detect(rec.Text, rec.AuthorName)
		detected.Original = rec.Location.Original
		rec.Location = detected
	}

	if p.labeler != nil {
		label, score, err := p.labeler.Label(ctx, rec.CleanText)
		if err != nil {
			// Label failures default to neutral rather than stalling
			// the batch; the score stays zero as a tell.
			p.log.Warn("sentiment labeling failed", "id", rec.ID, "error", err)
			label, score = "neutral", 0
		}
		rec.Sentiment = label
		rec.SentimentScore = score
	}
	return rec
}
