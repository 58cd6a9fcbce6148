// Package batch drives the chunked, resumable geocoding run: it pulls rows
// from the input in order, derives queries, calls the provider through its
// rate limiter, appends results to the output, and commits a checkpoint at
// every chunk boundary.
package batch

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/darren-owldoor/owldoor-geocoder/internal/csvio"
	"github.com/darren-owldoor/owldoor-geocoder/internal/resilience"
	"github.com/darren-owldoor/owldoor-geocoder/pkg/geocode"
)

// Status is the per-row outcome written to the geocode_status output column.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusNoAddress Status = "no_address"
)

// DefaultChunkSize is the checkpoint interval in rows.
const DefaultChunkSize = 1000

// progressEvery controls how often a progress line is logged.
const progressEvery = 100

// outputColumns are appended after the original columns, in this order.
var outputColumns = []string{"latitude", "longitude", "geocode_status", "geocode_address"}

// ResultCache answers geocode queries without a provider call. Cache errors
// are never fatal to a run.
type ResultCache interface {
	Get(ctx context.Context, query string) (*geocode.Result, error)
	Put(ctx context.Context, query string, r *geocode.Result) error
}

// Options configures a Processor.
type Options struct {
	InputPath  string
	OutputPath string
	Mapping    ColumnMapping
	Provider   geocode.Provider
	ChunkSize  int  // default DefaultChunkSize
	Resume     bool // continue from the last committed checkpoint
	Delimiter  rune // default ','
	Encoding   string
	Cache      ResultCache // optional
	Limit      int         // max rows to process this run, 0 = all
	Retry      resilience.RetryConfig
}

// Processor runs one batch geocoding job. A single logical worker processes
// rows strictly in index order; the only suspension points are the rate
// limiter wait and the outbound call.
type Processor struct {
	opts  Options
	stats Stats
}

// New validates opts and creates a Processor.
func New(opts Options) (*Processor, error) {
	if opts.InputPath == "" {
		return nil, eris.New("batch: input path is required")
	}
	if opts.OutputPath == "" {
		return nil, eris.New("batch: output path is required")
	}
	if opts.Provider == nil {
		return nil, eris.New("batch: provider is required")
	}
	if err := opts.Mapping.Validate(); err != nil {
		return nil, err
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return &Processor{opts: opts}, nil
}

// Run executes the batch. It returns the run stats alongside any abort error;
// on abort, all rows up to the last committed checkpoint remain valid and the
// run can be resumed.
func (p *Processor) Run(ctx context.Context) (*Stats, error) {
	p.stats = Stats{StartedAt: time.Now()}

	if _, err := os.Stat(p.opts.InputPath); err != nil {
		return &p.stats, eris.Wrapf(err, "batch: input %s", p.opts.InputPath)
	}
	total, err := csvio.CountRows(p.opts.InputPath, p.opts.Delimiter)
	if err != nil {
		return &p.stats, err
	}

	reader, err := csvio.OpenReader(p.opts.InputPath, csvio.ReaderOptions{
		Delimiter:  p.opts.Delimiter,
		Encoding:   p.opts.Encoding,
		LazyQuotes: true,
	})
	if err != nil {
		return &p.stats, err
	}
	defer reader.Close() //nolint:errcheck

	extractor, err := NewExtractor(p.opts.Mapping, reader.Header())
	if err != nil {
		return &p.stats, err
	}

	cpStore := NewCheckpointStore(p.opts.OutputPath)
	startIdx := 0
	runID := ""
	if p.opts.Resume {
		startIdx, runID, err = p.prepareResume(cpStore)
		if err != nil {
			return &p.stats, err
		}
	}
	if runID == "" {
		runID = uuid.New().String()
	}

	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("provider", p.opts.Provider.Name()),
	)

	var writer *csvio.Writer
	if startIdx > 0 {
		writer, err = csvio.AppendWriter(p.opts.OutputPath, p.opts.Delimiter)
	} else {
		header := append(append([]string{}, reader.Header()...), outputColumns...)
		writer, err = csvio.CreateWriter(p.opts.OutputPath, p.opts.Delimiter, header)
	}
	if err != nil {
		return &p.stats, err
	}
	defer writer.Close() //nolint:errcheck

	log.Info("starting batch geocode",
		zap.Int("input_rows", total),
		zap.Int("start_index", startIdx),
		zap.Int("chunk_size", p.opts.ChunkSize),
		zap.Bool("resume", p.opts.Resume),
	)

	retry := p.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(p.opts.Provider.Name())
	}

	lastCommitted := startIdx - 1
	nextIdx := startIdx // index the next processed row must have

	commit := func(lastIdx int) error {
		if err := writer.Flush(); err != nil {
			return err
		}
		if err := cpStore.Commit(Checkpoint{
			RunID:              runID,
			Provider:           p.opts.Provider.Name(),
			LastCompletedIndex: lastIdx,
			ChunkSize:          p.opts.ChunkSize,
		}); err != nil {
			return err
		}
		lastCommitted = lastIdx
		return nil
	}

	for {
		if ctx.Err() != nil {
			// Stop cleanly between rows: persist everything processed so the
			// next resume continues from here instead of the last chunk.
			if nextIdx-1 >= 0 && nextIdx-1 > lastCommitted {
				if cerr := commit(nextIdx - 1); cerr != nil {
					log.Error("commit on shutdown failed",
						zap.Int("last_committed_index", lastCommitted), zap.Error(cerr))
				}
			}
			p.stats.Elapsed = time.Since(p.stats.StartedAt)
			return &p.stats, eris.Wrap(ctx.Err(), "batch: run cancelled")
		}

		row, idx, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error("input read failed",
				zap.Int("last_committed_index", lastCommitted), zap.Error(err))
			p.stats.Elapsed = time.Since(p.stats.StartedAt)
			return &p.stats, err
		}
		if idx < startIdx {
			continue // completed in a previous run
		}
		if p.opts.Limit > 0 && idx-startIdx >= p.opts.Limit {
			break
		}

		outRow := p.processRow(ctx, log, extractor, retry, row, idx)
		if err := writer.Write(outRow); err != nil {
			log.Error("output write failed",
				zap.Int("row", idx),
				zap.Int("last_committed_index", lastCommitted), zap.Error(err))
			p.stats.Elapsed = time.Since(p.stats.StartedAt)
			return &p.stats, err
		}
		nextIdx = idx + 1

		if nextIdx%p.opts.ChunkSize == 0 {
			if err := commit(idx); err != nil {
				log.Error("checkpoint commit failed",
					zap.Int("last_committed_index", lastCommitted), zap.Error(err))
				p.stats.Elapsed = time.Since(p.stats.StartedAt)
				return &p.stats, err
			}
			log.Debug("checkpoint committed", zap.Int("last_completed_index", idx))
		}

		if n := p.stats.Processed(); n%progressEvery == 0 {
			p.logProgress(log, n, nextIdx, total)
		}
	}

	if nextIdx-1 >= 0 && nextIdx-1 > lastCommitted {
		if err := commit(nextIdx - 1); err != nil {
			log.Error("final commit failed",
				zap.Int("last_committed_index", lastCommitted), zap.Error(err))
			p.stats.Elapsed = time.Since(p.stats.StartedAt)
			return &p.stats, err
		}
	}

	p.stats.Elapsed = time.Since(p.stats.StartedAt)
	log.Info("batch geocode complete",
		zap.Int("processed", p.stats.Processed()),
		zap.Int("succeeded", p.stats.Succeeded),
		zap.Int("failed", p.stats.Failed),
		zap.Int("skipped", p.stats.Skipped),
		zap.Int("cache_hits", p.stats.CacheHits),
		zap.Duration("elapsed", p.stats.Elapsed),
		zap.Float64("rows_per_sec", p.stats.Rate()),
	)
	return &p.stats, nil
}

// prepareResume reconciles the checkpoint sidecar with the output file and
// returns the first row index to process. With no prior checkpoint or output,
// the run starts fresh from row 0.
func (p *Processor) prepareResume(cpStore *CheckpointStore) (int, string, error) {
	rows, err := csvio.CountRows(p.opts.OutputPath, p.opts.Delimiter)
	if err != nil {
		return 0, "", err
	}

	cp, err := cpStore.Load()
	if err != nil {
		return 0, "", err
	}
	if cp == nil {
		// No sidecar; the output row count alone determines the resume point.
		return rows, "", nil
	}

	if cp.Provider != p.opts.Provider.Name() {
		zap.L().Warn("resuming with a different provider than the checkpoint",
			zap.String("checkpoint_provider", cp.Provider),
			zap.String("provider", p.opts.Provider.Name()),
		)
	}

	committed := cp.LastCompletedIndex + 1
	switch {
	case rows > committed:
		// The output ran ahead of the checkpoint (crash between flush and
		// commit). Truncate back so resumed rows are not duplicated.
		zap.L().Warn("output ahead of checkpoint, truncating",
			zap.Int("output_rows", rows), zap.Int("committed_rows", committed))
		if err := csvio.TruncateRows(p.opts.OutputPath, p.opts.Delimiter, committed); err != nil {
			return 0, "", err
		}
		return committed, cp.RunID, nil
	case rows < committed:
		// Torn final chunk; trust the file and redo the difference.
		zap.L().Warn("output behind checkpoint, reprocessing the difference",
			zap.Int("output_rows", rows), zap.Int("committed_rows", committed))
		return rows, cp.RunID, nil
	default:
		return committed, cp.RunID, nil
	}
}

// processRow turns one input row into one output row. Row-local failures never
// escape: they become a failed or no_address status.
func (p *Processor) processRow(ctx context.Context, log *zap.Logger, ex *Extractor, retry resilience.RetryConfig, row []string, idx int) []string {
	query := ex.Extract(row)
	if query == "" {
		p.stats.Skipped++
		return appendResult(row, nil, StatusNoAddress)
	}
	p.stats.Attempted++

	if p.opts.Cache != nil {
		cached, err := p.opts.Cache.Get(ctx, query)
		if err != nil {
			log.Debug("cache lookup failed", zap.Int("row", idx), zap.Error(err))
		} else if cached != nil {
			p.stats.CacheHits++
			return p.finishRow(row, cached)
		}
	}

	result, err := resilience.Do(ctx, retry, func(ctx context.Context) (*geocode.Result, error) {
		return p.opts.Provider.Geocode(ctx, query)
	})
	if err != nil {
		p.stats.Failed++
		log.Warn("geocode failed", zap.Int("row", idx), zap.Error(err))
		return appendResult(row, nil, StatusFailed)
	}

	if p.opts.Cache != nil {
		if err := p.opts.Cache.Put(ctx, query, result); err != nil {
			log.Debug("cache store failed", zap.Int("row", idx), zap.Error(err))
		}
	}
	return p.finishRow(row, result)
}

func (p *Processor) finishRow(row []string, r *geocode.Result) []string {
	if r.Matched {
		p.stats.Succeeded++
		return appendResult(row, r, StatusSuccess)
	}
	p.stats.Failed++
	return appendResult(row, r, StatusFailed)
}

// appendResult appends the four output columns. Failed and no_address rows
// keep the schema with empty coordinate fields.
func appendResult(row []string, r *geocode.Result, status Status) []string {
	var lat, lon, formatted string
	if status == StatusSuccess && r != nil {
		lat = strconv.FormatFloat(r.Latitude, 'f', -1, 64)
		lon = strconv.FormatFloat(r.Longitude, 'f', -1, 64)
		formatted = r.FormattedAddress
	}

	out := make([]string, 0, len(row)+len(outputColumns))
	out = append(out, row...)
	return append(out, lat, lon, string(status), formatted)
}

func (p *Processor) logProgress(log *zap.Logger, processed, nextIdx, total int) {
	rate := p.stats.Rate()
	fields := []zap.Field{
		zap.Int("processed", processed),
		zap.Int("position", nextIdx),
		zap.Int("total", total),
		zap.Int("succeeded", p.stats.Succeeded),
		zap.Int("failed", p.stats.Failed),
		zap.Int("skipped", p.stats.Skipped),
		zap.Float64("rows_per_sec", rate),
	}
	if rate > 0 && total > nextIdx {
		eta := time.Duration(float64(total-nextIdx)/rate) * time.Second
		fields = append(fields, zap.Duration("eta", eta))
	}
	log.Info("progress", fields...)
}
