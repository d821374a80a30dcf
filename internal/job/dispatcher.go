package job

import (
	"context"
	"fmt"
)

// Dispatcher starts asynchronous jobs. target names the backend that serves
// the job (a collection id); method names the operation.
type Dispatcher interface {
	Start(target, method string, args Args) *Task
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(target, method string, args Args) *Task

func (f DispatcherFunc) Start(target, method string, args Args) *Task {
	return f(target, method, args)
}

// Source is a backend able to answer job methods.
type Source interface {
	Name() string
	Run(ctx context.Context, method string, args Args) (Tree, error)
}

// Inline runs jobs synchronously on the caller's goroutine. The returned
// task is always complete.
type Inline struct {
	Sources map[string]Source
}

func (d Inline) Start(target, method string, args Args) *Task {
	id := fmt.Sprintf("inline-%s-%s", target, method)
	src, ok := d.Sources[target]
	if !ok {
		return Failed(id, fmt.Errorf("%w: %s", ErrUnknownTarget, target))
	}
	tree, err := src.Run(context.Background(), method, args)
	if err != nil {
		return Failed(id, err)
	}
	return Resolved(id, tree)
}
