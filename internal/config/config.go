package config

import "time"

// GatewayConfig is the root configuration for a gateway instance.
type GatewayConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Storage     StorageConfig     `yaml:"storage"`
	Registry    RegistryConfig    `yaml:"registry"`
	Connections ConnectionsConfig `yaml:"connections"`
	Transport   TransportConfig   `yaml:"transport"`
	Auth        AuthConfig        `yaml:"auth"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// InstanceConfig identifies this gateway. In clustered deployments the
// ID doubles as the push endpoint peers use to reach sockets held here,
// so it should be a routable host or host:port.
type InstanceConfig struct {
	ID   string `yaml:"id"`
	Port int    `yaml:"port"` // gateway listen port (ingress, push surface, health)
}

// StorageConfig selects and configures the connection store backend.
// Namespace prefixes Redis keys and names the Postgres table, so it is
// restricted to identifier characters.
type StorageConfig struct {
	Backend   string      `yaml:"backend"` // memory | redis | postgres
	Namespace string      `yaml:"namespace"`
	Redis     RedisConfig `yaml:"redis"`
	Postgres  DBConfig    `yaml:"postgres"`
}

// RegistryConfig selects the subscription registry backend. The redis
// backend reuses storage.redis connection settings.
type RegistryConfig struct {
	Backend string `yaml:"backend"` // memory | redis
}

// RedisConfig holds a single Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// DBConfig holds a single Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ConnectionsConfig holds connection lifecycle settings.
type ConnectionsConfig struct {
	TTL               time.Duration `yaml:"ttl"`         // lifetime granted at registration
	DisableTTL        bool          `yaml:"disable_ttl"` // records never expire when true
	HydrateRetries    int           `yaml:"hydrate_retries"`
	HydrateRetryDelay time.Duration `yaml:"hydrate_retry_delay"`
	Debug             bool          `yaml:"debug"`
}

// TransportConfig holds push delivery settings.
type TransportConfig struct {
	Mode      string        `yaml:"mode"` // push | local
	AuthToken string        `yaml:"auth_token"`
	Timeout   time.Duration `yaml:"timeout"`
}

// AuthConfig holds session token validation settings for the socket
// ingress. Tokens are HMAC-signed JWTs; revoked token ids live in Redis
// under RevocationPrefix.
type AuthConfig struct {
	Enabled          bool   `yaml:"enabled"`
	JWTSecret        string `yaml:"jwt_secret"`
	TokenParam       string `yaml:"token_param"` // query parameter carrying the token
	RevocationPrefix string `yaml:"revocation_prefix"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
