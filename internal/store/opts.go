package store

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string. For SQLite this is a file
	// path, for Postgres a connection URL or key=value string.
	DSN string
}

// Option defines a functional option for store configuration.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}
