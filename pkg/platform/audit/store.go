package audit

import "context"

// Appender is the write side of an audit sink. Kafka sinks implement only
// this.
type Appender interface {
	Append(ctx context.Context, event Event) error
}

// Store is an appender that can also be queried, for tests and local
// development.
type Store interface {
	Appender
	ListByWidget(ctx context.Context, widgetID string) ([]Event, error)
}
