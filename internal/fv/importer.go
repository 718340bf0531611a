package fv

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress is one import progress event. An event with Done=false is emitted
// just before an item starts; the matching Done=true event carries the
// outcome and the running tallies. Events are emitted in strictly increasing
// index order.
type Progress struct {
	Index int // zero-based position in the batch
	Total int
	Name  string
	Done  bool

	Success  int
	Failed   int
	Retained int // imported, but the original could not be removed
}

// ProgressFunc receives progress events. It is called from the importing
// goroutine; implementations should hand off quickly.
type ProgressFunc func(Progress)

// Summary is the final tally of one import job.
type Summary struct {
	Total     int
	Success   int
	Failed    int
	Retained  int
	Cancelled bool
}

// Job identifies one bulk import run. It is discarded when the run finishes;
// an interrupted run leaves no resumable state.
type Job struct {
	ID         string
	TargetDir  string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary
}

// JobRecorder persists finished import jobs, e.g. to the history table.
type JobRecorder interface {
	RecordImportJob(job *Job) error
}

// Importer orchestrates bulk imports through the custodian. Items are
// processed strictly sequentially: simple monotonic progress, and no two
// items can race on collision-resolution numbering. At most one job runs at
// a time; a second Run while one is active fails with ErrImportActive.
type Importer struct {
	cust     *Custodian
	recorder JobRecorder // may be nil
	logger   Logger
	clock    Clock
	idgen    IDGenerator

	mu        sync.Mutex
	running   bool
	cancelled atomic.Bool
}

// NewImporter creates an Importer. recorder may be nil when no history is kept.
func NewImporter(cust *Custodian, recorder JobRecorder, logger Logger, clock Clock, idgen IDGenerator) *Importer {
	return &Importer{
		cust:     cust,
		recorder: recorder,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// Cancel requests cooperative cancellation of the running job. The check
// happens between items, never mid-copy; files already imported stay in the
// vault.
func (im *Importer) Cancel() {
	im.cancelled.Store(true)
}

// Run imports the sources one by one into targetDir (relative to the vault
// root, empty for the root). Individual failures do not abort the batch;
// they are counted and the batch continues. Returns the final summary.
func (im *Importer) Run(sources []Source, targetDir string, deleteSources bool, fn ProgressFunc) (*Summary, error) {
	im.mu.Lock()
	if im.running {
		im.mu.Unlock()
		return nil, ErrImportActive
	}
	im.running = true
	im.cancelled.Store(false)
	im.mu.Unlock()

	defer func() {
		im.mu.Lock()
		im.running = false
		im.mu.Unlock()
	}()

	job := &Job{
		ID:        im.idgen.New(),
		TargetDir: targetDir,
		StartedAt: im.clock.Now(),
	}
	job.Total = len(sources)
	im.logger.Info("import started", "job", job.ID, "items", job.Total)

	for i, src := range sources {
		if im.cancelled.Load() {
			job.Cancelled = true
			im.logger.Info("import cancelled", "job", job.ID, "completed", i)
			break
		}

		name, nameErr := src.DisplayName()
		im.emit(fn, Progress{
			Index: i, Total: job.Total, Name: name,
			Success: job.Success, Failed: job.Failed, Retained: job.Retained,
		})

		var result *ImportResult
		err := nameErr
		if err == nil {
			result, err = im.cust.ImportFile(src, targetDir, deleteSources)
		}
		if err != nil {
			job.Failed++
			im.logger.Warn("import item failed", "job", job.ID, "index", i, "name", name, "err", err)
		} else {
			job.Success++
			if result.SourceRetained {
				job.Retained++
			}
		}

		im.emit(fn, Progress{
			Index: i, Total: job.Total, Name: name, Done: true,
			Success: job.Success, Failed: job.Failed, Retained: job.Retained,
		})
	}

	job.FinishedAt = im.clock.Now()
	im.logger.Info("import finished", "job", job.ID,
		"success", job.Success, "failed", job.Failed,
		"retained", job.Retained, "cancelled", job.Cancelled)

	if im.recorder != nil {
		if err := im.recorder.RecordImportJob(job); err != nil {
			im.logger.Warn("recording import job", "job", job.ID, "err", err)
		}
	}

	summary := job.Summary
	return &summary, nil
}

func (im *Importer) emit(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}
