package service

import (
	"sync"

	"github.com/rowan/attest/internal/domain"
)

// JobBroker is an in-process pub/sub over job rows, keyed by job id. The
// orchestrator publishes after every durable job write, so a subscriber
// (the watch endpoint) observes the same terminal state as the original
// stream even if that stream's connection dropped.
type JobBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan *domain.Job]struct{}
}

// NewJobBroker creates an empty broker.
func NewJobBroker() *JobBroker {
	return &JobBroker{
		subs: make(map[string]map[chan *domain.Job]struct{}),
	}
}

// Subscribe registers for updates to one job. The returned cancel function
// must be called exactly once; it unregisters and closes the channel.
func (b *JobBroker) Subscribe(jobID string) (<-chan *domain.Job, func()) {
	ch := make(chan *domain.Job, 16)

	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[chan *domain.Job]struct{})
	}
	b.subs[jobID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[jobID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.subs, jobID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Publish fans a job snapshot out to its subscribers. Publishing never
// blocks: a subscriber that has fallen 16 updates behind loses its oldest
// update, keeping the latest state deliverable. Snapshots are value copies,
// so subscribers never share memory with the pipeline's live job struct.
func (b *JobBroker) Publish(job *domain.Job) {
	if job == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[job.ID] {
		snapshot := *job
		snapshot.Highlights = append(domain.HighlightList(nil), job.Highlights...)
		select {
		case ch <- &snapshot:
		default:
			// Drop the oldest buffered update to make room for the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- &snapshot:
			default:
			}
		}
	}
}
