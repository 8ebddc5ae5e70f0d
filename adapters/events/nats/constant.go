package nats

import "time"

const (
	DefaultURL             = "nats://127.0.0.1:4222"
	DefaultConnectAttempts = 10
	DefaultRetryDelay      = 2 * time.Second
	DefaultDrainTimeout    = 5 * time.Second
	DefaultConnectTimeout  = 2 * time.Second

	streamPrefix = "Q_"
)
