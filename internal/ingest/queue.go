package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// JobState is the observable state of a scheduled ingestion job. It
// complements the persisted document status: the queue answers "is it still
// waiting, running, or finished", the document row answers "what did it
// produce".
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// ErrQueueFull is returned by Enqueue when the pending-job buffer is
// exhausted; callers decide how to surface the rejected schedule.
var ErrQueueFull = errors.New("ingestion queue full")

// Queue runs ingestion jobs on a fixed pool of workers and tracks each job's
// observable state. It is safe for concurrent use.
type Queue struct {
	pipeline *Pipeline
	jobs     chan string
	states   sync.Map // documentID -> JobState
	wg       sync.WaitGroup
	log      zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewQueue constructs a Queue with a pending buffer of size buffer. Workers
// are not started until Start is called.
func NewQueue(p *Pipeline, buffer int, log zerolog.Logger) *Queue {
	if buffer < 1 {
		buffer = 1
	}
	return &Queue{
		pipeline: p,
		jobs:     make(chan string, buffer),
		log:      log,
	}
}

// Start launches workers goroutines consuming the job buffer. The provided
// context cancels in-flight pipeline runs on shutdown.
func (q *Queue) Start(ctx context.Context, workers int) {
	q.startOnce.Do(func() {
		if workers < 1 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			q.wg.Add(1)
			go q.worker(ctx)
		}
	})
}

// Enqueue schedules an ingestion job for documentID without blocking.
// Returns ErrQueueFull when the buffer is exhausted.
//
// The queued state is recorded before the send: a worker may dequeue the job
// immediately, and storing after the send could overwrite its running state.
func (q *Queue) Enqueue(documentID string) error {
	q.states.Store(documentID, JobQueued)
	select {
	case q.jobs <- documentID:
		return nil
	default:
		q.states.Delete(documentID)
		return ErrQueueFull
	}
}

// State reports the last known job state for documentID. The second return
// is false when no job for that document has been scheduled since startup.
func (q *Queue) State(documentID string) (JobState, bool) {
	v, ok := q.states.Load(documentID)
	if !ok {
		return "", false
	}
	return v.(JobState), true
}

// Stop closes the queue and waits for in-flight jobs to finish. Enqueue must
// not be called after Stop.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.jobs)
	})
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for id := range q.jobs {
		q.states.Store(id, JobRunning)
		if err := q.pipeline.Run(ctx, id); err != nil {
			q.states.Store(id, JobFailed)
			q.log.Error().Err(err).Str("document_id", id).Msg("ingestion job failed")
			continue
		}
		q.states.Store(id, JobDone)
	}
}
