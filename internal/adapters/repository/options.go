package repository

import "github.com/okian/glucofeed/pkg/logger"

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithMaxOpenConns caps the connection pool. In-memory databases always use one.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithBusyTimeoutMS sets how long SQLite waits on a locked database.
func WithBusyTimeoutMS(ms int) Option {
	return func(s *SQLiteStore) {
		if ms >= 0 {
			s.busyTimeoutMS = ms
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}
