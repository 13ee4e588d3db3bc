package work

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nudgelabs/nudged/server/models"
	"gorm.io/gorm"
)

type workerPool struct {
	db          *gorm.DB
	handlers    map[string]Handler
	workers     []*worker
	concurrency int
	started     bool
}

func newWorkerPool(db *gorm.DB, concurrency int) *workerPool {
	wp := workerPool{db: db, handlers: make(map[string]Handler), concurrency: concurrency}

	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker(db, wp.handlers, []int64{0, 10, 100, 120}))
	}

	return &wp
}

// registerHandler binds a name to a job handler for all workers in pool
func (wp *workerPool) registerHandler(name string, handler Handler) error {
	if _, ok := wp.handlers[name]; ok {
		return ErrDuplicateHandler
	}

	wp.handlers[name] = handler

	return nil
}

// enqueue adds a job to the queue(to be executed) by creating a DB record based on 'JobParams' provided
func (wp *workerPool) enqueue(job JobParams) error {
	argsAsJSON, err := marshalJobArgs(job)
	if err != nil {
		return err
	}

	// This ensures that all jobs currently in the queue or in-progress are unique
	return models.CreateUniqueJobByName(wp.db, job.Name, job.Handler, argsAsJSON)
}

// enqueueIn creates a scheduled job to be moved into the queue
// 'secondsInFuture' seconds from now.
func (wp *workerPool) enqueueIn(secondsInFuture int64, job JobParams) error {
	argsAsJSON, err := marshalJobArgs(job)
	if err != nil {
		return err
	}

	runAt := time.Now().Add(time.Duration(secondsInFuture) * time.Second)

	return models.CreateScheduledJob(wp.db, job.Name, job.Handler, argsAsJSON, runAt)
}

func (wp *workerPool) start() {
	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}
}

func (wp *workerPool) stop() {
	if !wp.started {
		return
	}

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			w.stop()
			wg.Done()
		}(w)
	}
	wg.Wait()
	wp.started = false
}

func marshalJobArgs(job JobParams) (string, error) {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return "", fmt.Errorf("both a name & handler is required for a job")
	}

	argsAsJSON, err := json.Marshal(job.Args)
	if err != nil {
		return "", err
	}

	return string(argsAsJSON), nil
}
