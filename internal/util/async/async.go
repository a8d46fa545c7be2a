package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes tasks concurrently and waits for all of them. At most
// limit tasks run at once; a limit below one means no bound. Every failing
// task contributes its error, prefixed with the task name, to the joined
// result. A failing task does not cancel its siblings.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "admin", Func: genAdmin},
//	    {Name: "kube-proxy", Func: genProxy},
//	}
//	if err := RunParallel(ctx, tasks, 4); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	var (
		mu   sync.Mutex
		errs []error
	)

	for _, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
				mu.Unlock()
				return nil
			}
			if err := task.Func(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}
