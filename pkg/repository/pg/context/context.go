package context

import (
	"context"

	"github.com/mpapenbr/lanerace-service-go/pkg/repository"
)

type pgContextKey struct{}

func NewContext(ctx context.Context, q repository.Querier) context.Context {
	return context.WithValue(ctx, pgContextKey{}, q)
}

func FromContext(ctx context.Context) repository.Querier {
	if ctx == nil {
		return nil
	}
	if q, ok := ctx.Value(pgContextKey{}).(repository.Querier); ok {
		return q
	}
	return nil
}

// Executor returns the querier of a running transaction, fallback otherwise.
func Executor(ctx context.Context, fallback repository.Querier) repository.Querier {
	if q := FromContext(ctx); q != nil {
		return q
	}
	return fallback
}
