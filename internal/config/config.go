// Package config provides configuration loading and hot-reload for the
// Oba LDAP client: which servers to dial, how to bind, and how the
// connection pool and individual sockets should behave.
package config

import "time"

// Config holds the complete client configuration.
type Config struct {
	Servers  []ServerEndpoint `yaml:"servers"`
	Strategy string           `yaml:"strategy"` // "single", "roundRobin", "failover"
	Bind     BindConfig       `yaml:"bind"`
	TLS      TLSConfig        `yaml:"tls"`
	Dial     DialConfig       `yaml:"dial"`
	Pool     PoolConfig       `yaml:"pool"`
	Logging  LogConfig        `yaml:"logging"`
}

// ServerEndpoint is one directory server a server set may dial.
type ServerEndpoint struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BindConfig holds the credentials used to authenticate new
// connections, either a simple bind (DN + Password) or a SASL
// mechanism name paired with an external credential source.
type BindConfig struct {
	DN            string `yaml:"dn"`
	Password      string `yaml:"password"`
	SASLMechanism string `yaml:"saslMechanism"`
}

// TLSConfig holds the material needed to dial with DialTLS or to
// StartTLS an existing plaintext connection.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
	CAFile             string `yaml:"caFile"`
	ServerName         string `yaml:"serverName"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// DialConfig mirrors conn.Options' per-socket behavior so it can be
// expressed in a config file instead of constructed in code.
type DialConfig struct {
	AutoReconnect          bool          `yaml:"autoReconnect"`
	FollowReferrals        bool          `yaml:"followReferrals"`
	ReferralHopLimit       int           `yaml:"referralHopLimit"`
	UseKeepAlive           bool          `yaml:"useKeepAlive"`
	UseTCPNoDelay          bool          `yaml:"useTCPNoDelay"`
	UseReuseAddress        bool          `yaml:"useReuseAddress"`
	UseLinger              bool          `yaml:"useLinger"`
	LingerTimeout          time.Duration `yaml:"lingerTimeout"`
	ConnectTimeout         time.Duration `yaml:"connectTimeout"`
	ResponseTimeout        time.Duration `yaml:"responseTimeout"`
	MaxMessageSize         int           `yaml:"maxMessageSize"`
	UseSynchronousMode     bool          `yaml:"useSynchronousMode"`
	BindDNRequiresPassword bool          `yaml:"bindDNRequiresPassword"`
}

// PoolConfig mirrors pool.Config.
type PoolConfig struct {
	InitialSize  int           `yaml:"initialSize"`
	MaxSize      int           `yaml:"maxSize"`
	IdleInterval time.Duration `yaml:"idleInterval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}
