package victory

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Results are the metrics of a discovery or replay pass.
//
// For discovery Files counts records discovered and Batches counts batches
// produced. For replay Files counts records written, Failed counts records
// that could not be read or written, and Batches counts batches processed.
type Results struct {
	Files     int
	Failed    int
	Batches   int
	BatchTime time.Duration
	TotalTime time.Duration
}

// add folds another result into r.
func (r *Results) add(other *Results) {
	r.Files += other.Files
	r.Failed += other.Failed
	r.Batches += other.Batches
	r.BatchTime += other.BatchTime
	r.TotalTime += other.TotalTime
}

// Executor drives discovery and replay for a plan and reports metrics.
// It holds no state between calls; the plan's ledger and each source's
// cursor are the only state that survives a loop iteration.
type Executor struct {
	logger Logger
	clock  Clock
}

// NewExecutor creates an executor. A nil logger discards output and a nil
// clock uses the real time.
func NewExecutor(logger Logger, clock Clock) *Executor {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Executor{logger: logger, clock: clock}
}

// Discover pages every source, in order, into batches of up to batchSize
// records. Each non-empty page is saved under the plan root as
// <plan>_<index> and appended to the ledger. The index is shared across
// sources.
//
// A batch that fails to save is logged and its name is still appended to the
// ledger, so later batch names do not shift. Replaying such a plan fails when
// it reaches the missing batch file.
func (e *Executor) Discover(p *BackupPlan, batchSize int) (*Results, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("discovering plan %s: %w", p.Name, ErrInvalidBatchSize)
	}
	if p.Path == "" {
		return nil, fmt.Errorf("discovering plan %s: %w", p.Name, ErrNoRoot)
	}

	start := e.clock.Now()
	res := &Results{}

	// TODO: one cursor per worker once discovery runs concurrently; appendBatch
	// is then the only call that needs serializing.
	for _, src := range p.Sources {
		for {
			batchStart := e.clock.Now()
			files, err := src.ListFilesNext(batchSize)
			if err != nil {
				e.logger.Error("listing files failed", "source", src.Name(), "error", err)
				break
			}
			if len(files) == 0 {
				break
			}

			batch := NewFileBatch(fmt.Sprintf("%s_%d", p.Name, res.Batches))
			batch.AddFiles(files)
			listed := e.clock.Now()

			res.Batches++
			res.Files += batch.Len()
			p.appendBatch(batch.Name)

			batchPath := p.BatchPath(batch.Name)
			size, err := batch.Save(batchPath)
			if err != nil {
				e.logger.Error("saving batch failed", "batch", batch.Name, "path", batchPath, "error", err)
			}
			saved := e.clock.Now()
			res.BatchTime += saved.Sub(batchStart)

			e.logger.Info("batch discovered",
				"batch", batch.Name,
				"files", humanize.Comma(int64(batch.Len())),
				"disk_size", humanize.Bytes(uint64(size)),
				"discover_time", listed.Sub(batchStart),
				"save_time", saved.Sub(listed),
				"path", batchPath,
			)
		}
	}

	res.TotalTime = e.clock.Now().Sub(start)
	e.logger.Info("discovery complete",
		"plan", p.Name,
		"batches", res.Batches,
		"files", humanize.Comma(int64(res.Files)),
		"total_time", res.TotalTime,
	)
	return res, nil
}

// ProcessBatch loads one batch from the plan root and copies each of its
// records from the first source to the first destination. Records that fail
// to read or write are logged, counted in Failed and skipped. Failing to load
// the batch is returned.
func (e *Executor) ProcessBatch(p *BackupPlan, batchName string) (*Results, error) {
	src, dst, err := replayEndpoints(p)
	if err != nil {
		return nil, err
	}
	return e.processBatch(p, src, dst, batchName)
}

// Run replays every batch of the ledger in order. The first batch that cannot
// be loaded aborts the run; the metrics gathered so far are returned with the
// error.
func (e *Executor) Run(p *BackupPlan) (*Results, error) {
	src, dst, err := replayEndpoints(p)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("running plan", "plan", p.Name, "batches", len(p.Batches))
	combined := &Results{}
	for _, name := range p.Batches {
		res, err := e.processBatch(p, src, dst, name)
		if err != nil {
			e.logger.Error("processing batch failed", "batch", name, "error", err)
			return combined, err
		}
		combined.add(res)
	}

	e.logger.Info("run complete",
		"plan", p.Name,
		"batches", combined.Batches,
		"files", humanize.Comma(int64(combined.Files)),
		"failed", combined.Failed,
		"total_time", combined.TotalTime,
	)
	return combined, nil
}

func (e *Executor) processBatch(p *BackupPlan, src, dst Destination, batchName string) (*Results, error) {
	batchPath := p.BatchPath(batchName)
	e.logger.Debug("loading batch", "batch", batchName, "path", batchPath)

	start := e.clock.Now()
	batch, err := LoadBatch(batchPath)
	if err != nil {
		return nil, fmt.Errorf("loading batch %s: %w", batchName, err)
	}

	res := &Results{Batches: 1}
	for _, rec := range batch.Files {
		if err := src.ReadFile(rec); err != nil {
			e.logger.Error("reading file failed", "path", rec.RelativePath, "source", src.Name(), "error", err)
			res.Failed++
			continue
		}
		if err := dst.WriteFile(rec); err != nil {
			e.logger.Error("writing file failed", "path", rec.RelativePath, "destination", dst.Name(), "error", err)
			res.Failed++
			continue
		}
		rec.ClearContents()
		res.Files++
	}

	elapsed := e.clock.Now().Sub(start)
	res.BatchTime = elapsed
	res.TotalTime = elapsed

	e.logger.Info("batch processed",
		"batch", batchName,
		"written", humanize.Comma(int64(res.Files)),
		"failed", res.Failed,
		"time", elapsed,
	)
	return res, nil
}

// replayEndpoints returns the pair used for copying. Only the first source
// and the first destination take part in a replay.
func replayEndpoints(p *BackupPlan) (Destination, Destination, error) {
	if len(p.Sources) == 0 {
		return nil, nil, fmt.Errorf("replaying plan %s: %w", p.Name, ErrNoSource)
	}
	if len(p.Destinations) == 0 {
		return nil, nil, fmt.Errorf("replaying plan %s: %w", p.Name, ErrNoDestination)
	}
	return p.Sources[0], p.Destinations[0], nil
}
