package imgpress

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/vgoulart/imgpress/internal/logger"
)

// Runner drives the whole batch: it walks the tree, feeds file tasks to
// a bounded worker pool, and folds every outcome into the aggregator.
type Runner struct {
	pipeline Pipeline
	walker   *DirectoryWalker
	stats    *StatsAggregator
	workers  int
}

// NewRunner creates a Runner. A non-positive worker count defaults to
// the number of CPUs: decode and encode are CPU- and memory-bound, so
// more workers mostly means more simultaneously decoded rasters.
func NewRunner(pipeline Pipeline, walker *DirectoryWalker, stats *StatsAggregator, workers int) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		pipeline: pipeline,
		walker:   walker,
		stats:    stats,
		workers:  workers,
	}
}

// Run processes every candidate file and returns the final report.
// Cancelling the context stops dispatching new files; in-flight files
// finish or fail cleanly, and each completed task is recorded exactly
// once.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	dirs, err := r.walker.Walk()
	if err != nil {
		return Report{}, err
	}
	r.stats.AddDirectories(len(dirs))

	jobs := make(chan FileTask, r.workers)
	var wg sync.WaitGroup

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go r.worker(ctx, jobs, &wg)
	}

	go r.produce(ctx, dirs, jobs)

	wg.Wait()
	return r.stats.Finalize(), nil
}

// produce feeds the discovered files to the workers, one directory at a
// time, and closes the jobs channel when done or cancelled.
func (r *Runner) produce(ctx context.Context, dirs []ImageDirectory, jobs chan<- FileTask) {
	defer close(jobs)
	for _, dir := range dirs {
		logger.Info("Processing directory", "path", dir.Path, "files", len(dir.Files))
		for _, file := range dir.Files {
			task := FileTask{
				InputPath: file,
				RelPath:   filepath.Join(dir.RelPath, filepath.Base(file)),
			}
			select {
			case jobs <- task:
			case <-ctx.Done():
				logger.Warn("Run cancelled, stopping dispatch", "directory", dir.Path)
				return
			}
		}
		r.stats.DirectoryProcessed()
	}
}

// worker pulls tasks until the channel closes. Tasks still queued after
// cancellation are dropped without being recorded.
func (r *Runner) worker(ctx context.Context, jobs <-chan FileTask, wg *sync.WaitGroup) {
	defer wg.Done()
	for task := range jobs {
		select {
		case <-ctx.Done():
			continue
		default:
		}

		res := r.pipeline.Process(ctx, task)
		r.stats.Record(res)
		if !res.Success {
			logger.Error("Failed to compress file",
				"file", task.InputPath, "kind", string(res.Kind), "error", res.Err)
		}
	}
}
