package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"erpsync"`
	Password string `env:"PASSWORD" envDefault:"erpsync"`
	Name     string `env:"NAME"     envDefault:"erpsync"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration for the sink key cache.
// The cache is optional; when Addr is empty the worker falls back to
// querying the sink for record existence on every push.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:""`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`

	// KeyTTL is the TTL for cached business key → sink record id entries.
	KeyTTL time.Duration `env:"KEY_TTL" envDefault:"12h"`
}

// Enabled returns true when a Redis address is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}
