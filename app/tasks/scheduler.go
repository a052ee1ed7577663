package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lexfeed/lexfeed/app/cfg"
	"github.com/lexfeed/lexfeed/app/database"
	"github.com/lexfeed/lexfeed/app/enrich"
	"github.com/lexfeed/lexfeed/app/feed"
	"github.com/lexfeed/lexfeed/app/site"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs the pipeline: a worker pool draining a task queue, and a
// ticker that keeps the queue fed. Collection tasks fire per source when
// its next_fetch_at is due; enrichment, reaping and site publishing fire
// every tick.
type Scheduler struct {
	sources     database.SourceRepository
	articles    database.ArticleRepository
	sourceCache *feed.SourceCache
	collector   *feed.Collector
	processor   *enrich.Processor
	generator   *site.Generator
	staleAfter  time.Duration
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(sourceCache *feed.SourceCache, sources database.SourceRepository,
	articles database.ArticleRepository, collector *feed.Collector,
	processor *enrich.Processor, generator *site.Generator) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		sources:     sources,
		articles:    articles,
		sourceCache: sourceCache,
		collector:   collector,
		processor:   processor,
		generator:   generator,
		staleAfter:  time.Duration(cfg.StaleAfter) * time.Minute,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueStartupTasks collects every enabled source once, regardless of
// schedule, so a fresh deployment has data immediately.
func (s *Scheduler) enqueueStartupTasks() {
	configs := s.sourceCache.GetEnabledConfigs()
	if len(configs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Debug("Scheduling startup collection", "count", len(configs))

	for name := range configs {
		if err := s.EnqueueTask(NewCollectSourceTask(name, s.collector)); err != nil {
			slog.Warn("Failed to enqueue CollectSourceTask", "source", name, "error", err)
		}
	}

	if err := s.EnqueueTask(NewEnrichArticlesTask(s.processor)); err != nil {
		slog.Warn("Failed to enqueue EnrichArticlesTask", "error", err)
	}
}

func (s *Scheduler) enqueueTasks() {
	for name := range s.sourceCache.GetEnabledConfigs() {
		source, err := s.sources.GetSource(name)
		if err != nil {
			slog.Warn("Failed to get source from database, skipping", "source", name, "error", err)
			continue
		}

		now := time.Now().UTC()
		if source != nil && source.NextFetchAt != nil && source.NextFetchAt.After(now) {
			slog.Debug("Source not due for collection yet", "source", name, "next_fetch_at", source.NextFetchAt)
			continue
		}

		if err := s.EnqueueTask(NewCollectSourceTask(name, s.collector)); err != nil {
			slog.Warn("Failed to enqueue CollectSourceTask", "source", name, "error", err)
		}
	}

	if err := s.EnqueueTask(NewReapStaleTask(s.articles, s.staleAfter)); err != nil {
		slog.Warn("Failed to enqueue ReapStaleTask", "error", err)
	}

	if err := s.EnqueueTask(NewEnrichArticlesTask(s.processor)); err != nil {
		slog.Warn("Failed to enqueue EnrichArticlesTask", "error", err)
	}

	if err := s.EnqueueTask(NewPublishSiteTask(s.generator)); err != nil {
		slog.Warn("Failed to enqueue PublishSiteTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()),
			"id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(),
				"retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()),
							"id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(),
				"retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
