package capacity

import "context"

// Counter is the shared per-operator active-conversation counter. It must be
// visible to every process handling operator traffic, and idempotent per
// conversation id: adding the same conversation twice never double-counts.
type Counter interface {
	Increment(ctx context.Context, operatorUuid, conversationUuid string) error
	Decrement(ctx context.Context, operatorUuid, conversationUuid string) error
	ListActive(ctx context.Context, operatorUuid string) ([]string, error)
	ActiveCount(ctx context.Context, operatorUuid string) (int, error)
}
