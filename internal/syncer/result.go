package syncer

import "context"

// Status is the state of a sync as seen by an observer.
type Status int

const (
	Loading Status = iota
	Success
	Failure
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failure:
		return "failure"
	}
	return "unknown"
}

// Result is one signal of a sync. A sync channel yields Loading, then
// exactly one Success or Failure, then closes.
type Result[T any] struct {
	Status Status
	Data   T
	Err    error
}

// Await drains a sync channel and returns its terminal result.
func Await[T any](ctx context.Context, ch <-chan Result[T]) (T, error) {
	var zero T
	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case r, ok := <-ch:
			if !ok {
				return zero, context.Canceled
			}
			switch r.Status {
			case Success:
				return r.Data, nil
			case Failure:
				return zero, r.Err
			}
		}
	}
}
