package application

import "context"

// UseCase is a single command-style entry point into the application layer.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
