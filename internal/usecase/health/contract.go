package health

import "context"

// StorePinger is the event store's connectivity probe.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// IndexCounter proves index metadata is readable by counting the indices.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}
