package internal

import (
	"context"
	"time"
)

const (
	DefaultTimeout     = 30 * time.Second
	GatewayCallTimeout = 60 * time.Second
	StatusCheckTimeout = 30 * time.Second
	DatabaseTimeout    = 10 * time.Second
)

func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(parent, timeout)
}

func WithGatewayTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, GatewayCallTimeout)
}

func WithDatabaseTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DatabaseTimeout)
}
