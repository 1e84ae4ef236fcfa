package ports

import "context"

// HealthChecker is one dependency probed by GET /health: the database,
// the cache and the payment gateway's auth endpoint.
type HealthChecker interface {
	// Ping returns nil when the dependency answers.
	Ping(ctx context.Context) error
	Name() string
}
