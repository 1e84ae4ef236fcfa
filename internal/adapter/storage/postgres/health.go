package postgres

import (
	"context"
	"time"
)

const healthProbeTimeout = 2 * time.Second

// HealthCheck probes the database behind the wallet and ledger tables.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping runs a trivial query bounded by healthProbeTimeout so a stalled
// pool cannot hang GET /health.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	_, err := h.pool.Exec(ctx, "SELECT 1")
	return err
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
