package job

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrTimeout       = errors.New("job timed out")
	ErrCancelled     = errors.New("job cancelled")
	ErrClosed        = errors.New("dispatcher closed")
	ErrFailed        = errors.New("job failed")
	ErrUnknownTarget = errors.New("unknown job target")
)

// Task is the future for one dispatched job. It completes exactly once,
// either with a tree or with an error.
type Task struct {
	id string

	mu        sync.Mutex
	done      chan struct{}
	completed bool
	tree      Tree
	err       error
	conts     []func(Tree, error)
}

// NewTask returns an incomplete task.
func NewTask(id string) *Task {
	return &Task{id: id, done: make(chan struct{})}
}

// Resolved returns a task already completed with tree.
func Resolved(id string, tree Tree) *Task {
	t := NewTask(id)
	t.Resolve(tree)
	return t
}

// Failed returns a task already completed with err.
func Failed(id string, err error) *Task {
	t := NewTask(id)
	t.Reject(err)
	return t
}

func (t *Task) ID() string { return t.id }

// Resolve completes the task with tree. It reports false if the task was
// already complete.
func (t *Task) Resolve(tree Tree) bool {
	return t.complete(tree, nil)
}

// Reject completes the task with err. It reports false if the task was
// already complete.
func (t *Task) Reject(err error) bool {
	if err == nil {
		err = ErrFailed
	}
	return t.complete(nil, err)
}

func (t *Task) complete(tree Tree, err error) bool {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return false
	}
	t.completed = true
	t.tree, t.err = tree, err
	conts := t.conts
	t.conts = nil
	close(t.done)
	t.mu.Unlock()

	for _, fn := range conts {
		fn(tree, err)
	}
	return true
}

// Then registers fn to run once the task completes. If the task is already
// complete fn runs immediately on the calling goroutine, otherwise on the
// goroutine that completes the task.
func (t *Task) Then(fn func(Tree, error)) {
	t.mu.Lock()
	if !t.completed {
		t.conts = append(t.conts, fn)
		t.mu.Unlock()
		return
	}
	tree, err := t.tree, t.err
	t.mu.Unlock()
	fn(tree, err)
}

// Done is closed when the task completes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task completes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Tree, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.tree, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the completion error, or nil while the task is running or
// after it resolved.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
