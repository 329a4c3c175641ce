package download

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task tracks one download. It emits exactly one terminal event: complete
// (Err() == nil after Done is closed) or fail (Err() != nil).
type Task struct {
	ID      string
	URL     string
	Path    string
	Started time.Time

	once sync.Once
	done chan struct{}
	err  error
}

// NewTask returns a pending task. Managers and test doubles finish it with
// Finish.
func NewTask(rawURL, filePath string) *Task {
	return &Task{
		ID:      uuid.NewString(),
		URL:     rawURL,
		Path:    filePath,
		Started: time.Now(),
		done:    make(chan struct{}),
	}
}

// Finish resolves the task. Only the first call has an effect; it reports
// whether this call was the one that resolved the task.
func (t *Task) Finish(err error) bool {
	resolved := false
	t.once.Do(func() {
		t.err = err
		close(t.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the task has completed or failed.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the failure reason once Done is closed, nil otherwise.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done. A ctx error does not
// affect the download itself.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
