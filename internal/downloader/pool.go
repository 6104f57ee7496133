package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"igcrawler/pkg/feed"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/ratelimit"
	"igcrawler/pkg/storage"
)

// DownloadJob represents a single media download
type DownloadJob struct {
	URL     string
	Key     string
	MediaID string
	Handle  string
	Item    feed.Item
}

// JobFor builds a download job for item. ok is false when the item has no
// usable media URL or id.
func JobFor(handle string, item feed.Item) (DownloadJob, bool) {
	id := item.MediaID()
	if id == "" || item.MediaURL == "" || item.MediaURL == feed.Unavailable {
		return DownloadJob{}, false
	}
	return DownloadJob{URL: item.MediaURL, Key: item.Key, MediaID: id, Handle: handle, Item: item}, true
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      DownloadJob
	Success  bool
	Skipped  bool
	Path     string
	Error    error
	Duration time.Duration
	Size     int
}

// Fetcher downloads media bytes
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// MediaStorage stores downloaded media
type MediaStorage interface {
	IsStored(mediaID string) bool
	Save(r io.Reader, mediaID, ext string) (string, error)
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     Fetcher
	storage     MediaStorage
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool. Workers stop early when
// ctx is cancelled.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	fetcher Fetcher,
	store MediaStorage,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewTokenBucket(0, 1)
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan DownloadJob, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		storage:     store,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start launches all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs to finish and closes Results
func (wp *WorkerPool) Stop() {
	wp.logger.Info("Stopping worker pool...")

	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Info("Worker pool stopped")
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"media_id": job.MediaID,
			"handle":   job.Handle,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel. It must be drained while jobs run.
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			// drain so Stop does not block on a full queue
			continue
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
		}
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (wp *WorkerPool) processJob(job DownloadJob, workerID int) (result DownloadResult) {
	start := time.Now()
	result.Job = job
	defer func() { result.Duration = time.Since(start) }()

	if wp.storage.IsStored(job.MediaID) {
		wp.logger.DebugWithFields("Media already downloaded", map[string]interface{}{
			"worker_id": workerID,
			"media_id":  job.MediaID,
		})
		result.Success = true
		result.Skipped = true
		return result
	}

	if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
		result.Error = err
		return result
	}

	data, err := wp.fetcher.Fetch(wp.ctx, job.URL)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		wp.logger.ErrorWithFields("Worker failed to download media", map[string]interface{}{
			"worker_id": workerID,
			"media_id":  job.MediaID,
			"error":     err.Error(),
		})
		return result
	}
	result.Size = len(data)

	path, err := wp.storage.Save(bytes.NewReader(data), job.MediaID, storage.ExtFromURL(job.URL))
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		wp.logger.ErrorWithFields("Worker failed to save media", map[string]interface{}{
			"worker_id": workerID,
			"media_id":  job.MediaID,
			"error":     err.Error(),
			"size":      result.Size,
		})
		return result
	}

	result.Success = true
	result.Path = path
	wp.logger.DebugWithFields("Worker completed job successfully", map[string]interface{}{
		"worker_id": workerID,
		"media_id":  job.MediaID,
		"size":      result.Size,
	})
	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}
