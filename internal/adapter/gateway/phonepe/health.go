package phonepe

import "context"

// HealthCheck reports whether the gateway still issues access tokens.
// A cached token answers without a network call.
type HealthCheck struct {
	client *Client
}

func NewHealthCheck(client *Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	_, err := h.client.token(ctx)
	return err
}

func (h *HealthCheck) Name() string {
	return "phonepe"
}
