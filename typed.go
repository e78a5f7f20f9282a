package query

import (
	"context"
	"errors"
	"time"

	"github.com/rotiminicol/ijeuwa/types"
)

// ErrTypeMismatch is set on a Result whose cached value is not of the requested type.
var ErrTypeMismatch = errors.New("query: cached value has another type")

// Result is the typed view of an Entry handed to consumers.
type Result[T any] struct {
	Key     string
	Data    T
	HasData bool
	Status  types.Status
	Err     error

	// Stale is true when an invalidation happened after Data was fetched.
	Stale     bool
	Version   uint64
	FetchedAt time.Time
}

// Ready reports whether Data may be rendered as current.
func (r Result[T]) Ready() bool {
	return r.Status == types.Ready && r.HasData
}

func resultOf[T any](ent types.Entry) Result[T] {
	r := Result[T]{
		Key:       ent.Key,
		Status:    ent.Status,
		Err:       ent.Err,
		Stale:     ent.Invalidated(),
		Version:   ent.Version,
		FetchedAt: ent.FetchedAt,
	}
	if !ent.HasValue {
		return r
	}
	if ent.Value == nil {
		// hard-cleared with a nil value: the zero T
		r.HasData = true
		return r
	}
	v, ok := ent.Value.(T)
	if !ok {
		r.Err = ErrTypeMismatch
		return r
	}
	r.Data = v
	r.HasData = true
	return r
}

// ReadAs is Read with a typed fetcher and a typed result.
func ReadAs[T any](ctx context.Context, c *QueryCache, key string, fetch func(context.Context) (T, error)) (Result[T], error) {
	var f types.Fetcher
	if fetch != nil {
		f = func(ctx context.Context) (any, error) {
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	}
	ent, err := c.Read(ctx, key, f)
	return resultOf[T](ent), err
}

// PeekAs is Peek with a typed result.
func PeekAs[T any](c *QueryCache, key string) Result[T] {
	return resultOf[T](c.Peek(key))
}
