package queue

import (
	"context"
	"errors"
	"sync"

	"influxrelay/internal/record"
)

// ErrStopped is returned by Pop when the terminate sentinel is dequeued.
var ErrStopped = errors.New("queue: stopped")

type entry struct {
	rec  *record.Record
	stop bool
}

// Queue is an unbounded FIFO of records for a single consumer. Push never
// blocks; Pop blocks until an entry is available.
type Queue struct {
	mu      sync.Mutex
	items   []entry
	records int
	notify  chan struct{}
}

func New() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends a record.
func (q *Queue) Push(rec *record.Record) {
	q.push(entry{rec: rec})
}

// PushStop appends the terminate sentinel. Records queued before it are
// still delivered by Pop; Pop returns ErrStopped once it is reached.
func (q *Queue) PushStop() {
	q.push(entry{stop: true})
}

func (q *Queue) push(e entry) {
	q.mu.Lock()
	q.items = append(q.items, e)
	if !e.stop {
		q.records++
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of records waiting, not counting sentinels.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.records
}

// TrimOldest discards the oldest waiting records until at most max remain
// and returns the discarded records, oldest first. Sentinels are never
// discarded.
func (q *Queue) TrimOldest(max int) []*record.Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	excess := q.records - max
	if max < 0 || excess <= 0 {
		return nil
	}

	dropped := make([]*record.Record, 0, excess)
	kept := q.items[:0]
	for _, e := range q.items {
		if !e.stop && len(dropped) < excess {
			dropped = append(dropped, e.rec)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = entry{}
	}
	q.items = kept
	q.records -= len(dropped)
	return dropped
}

// Pop removes and returns the oldest record, blocking until one is
// available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (*record.Record, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = entry{}
			q.items = q.items[1:]
			if !e.stop {
				q.records--
			}
			q.mu.Unlock()

			if e.stop {
				return nil, ErrStopped
			}
			return e.rec, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
