package registry

import "context"

// Registry tracks which topics each connection subscribes to.
type Registry interface {
	// Subscribe records that the connection wants messages for topic.
	// Subscribing twice to the same topic is a no-op.
	Subscribe(ctx context.Context, connectionID, topic string) error

	// Unsubscribe removes a single subscription. Removing one that does
	// not exist is not an error.
	Unsubscribe(ctx context.Context, connectionID, topic string) error

	// UnsubscribeAll removes every subscription held by the connection.
	// Connection teardown calls this; it is idempotent.
	UnsubscribeAll(ctx context.Context, connectionID string) error

	// Subscribers returns the ids of connections subscribed to topic.
	Subscribers(ctx context.Context, topic string) ([]string, error)

	// Topics returns the topics the connection subscribes to.
	Topics(ctx context.Context, connectionID string) ([]string, error)
}
