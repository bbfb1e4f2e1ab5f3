package service

import (
	"time"

	"github.com/rl1809/cart-sync/internal/platform/logger"
)

const DefaultStorageKey = "cart::products"

type options struct {
	key          string
	log          *logger.Logger
	writeRetries uint
	writeTimeout time.Duration
	retryInitial time.Duration
	retryMax     time.Duration
}

type Option func(*options)

func defaultOptions() options {
	return options{
		key:          DefaultStorageKey,
		log:          logger.NewNop(),
		writeRetries: 5,
		writeTimeout: 5 * time.Second,
		retryInitial: 200 * time.Millisecond,
		retryMax:     10 * time.Second,
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithStorageKey sets the single key the whole cart is stored under.
func WithStorageKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.key = key
		}
	}
}

// WithWriteRetries bounds the attempts made for one snapshot. Values below 1
// are treated as 1.
func WithWriteRetries(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.writeRetries = uint(n)
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

func WithRetryBackoff(initial, max time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.retryInitial = initial
		}
		if max >= o.retryInitial {
			o.retryMax = max
		}
	}
}
