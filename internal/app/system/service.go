package system

import "context"

// Service is a lifecycle-managed background component. The manager starts and
// stops registered services deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
