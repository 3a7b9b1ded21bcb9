package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/oba-ldap/oba/internal/conn"
	"github.com/oba-ldap/oba/internal/logging"
	"github.com/oba-ldap/oba/internal/pool"
	"github.com/oba-ldap/oba/internal/serverset"
)

// ToLoggingConfig converts LogConfig to logging.Config.
func (c *Config) ToLoggingConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format, Output: c.Logging.Output}
}

// ToDialOptions converts DialConfig to the conn.Options a Dial/DialTLS
// call expects.
func (c *Config) ToDialOptions() conn.Options {
	d := c.Dial
	return conn.Options{
		AutoReconnect:          d.AutoReconnect,
		FollowReferrals:        d.FollowReferrals,
		ReferralHopLimit:       d.ReferralHopLimit,
		UseKeepAlive:           d.UseKeepAlive,
		UseTCPNoDelay:          d.UseTCPNoDelay,
		UseReuseAddress:        d.UseReuseAddress,
		UseLinger:              d.UseLinger,
		LingerTimeout:          d.LingerTimeout,
		ConnectTimeout:         d.ConnectTimeout,
		ResponseTimeout:        d.ResponseTimeout,
		MaxMessageSize:         d.MaxMessageSize,
		UseSynchronousMode:     d.UseSynchronousMode,
		BindDNRequiresPassword: d.BindDNRequiresPassword,
	}
}

// ToPoolConfig converts PoolConfig to pool.Config.
func (c *Config) ToPoolConfig() pool.Config {
	return pool.Config{
		InitialSize:  c.Pool.InitialSize,
		MaxSize:      c.Pool.MaxSize,
		IdleInterval: c.Pool.IdleInterval,
	}
}

// ToTLSConfig builds a *tls.Config from TLSConfig, loading the client
// certificate and CA pool from disk. Returns nil, nil when TLS isn't
// enabled.
func (c *Config) ToTLSConfig() (*tls.Config, error) {
	if !c.TLS.Enabled {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}

	if c.TLS.CertFile != "" || c.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("config: load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	if c.TLS.CAFile != "" {
		pem, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("config: read CA file: %w", err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("config: no certificates found in %s", c.TLS.CAFile)
		}
		tlsCfg.RootCAs = certPool
	}

	return tlsCfg, nil
}

// ToServerSet builds the serverset.ServerSet named by Strategy over
// Servers.
func (c *Config) ToServerSet() (serverset.ServerSet, error) {
	addrs := make([]serverset.Address, len(c.Servers))
	for i, s := range c.Servers {
		addrs[i] = serverset.Address{Host: s.Host, Port: s.Port}
	}

	switch c.Strategy {
	case "", "single":
		if len(addrs) == 0 {
			return nil, fmt.Errorf("config: strategy %q requires at least one server", c.Strategy)
		}
		return &serverset.Single{Address: addrs[0]}, nil
	case "roundRobin":
		if len(addrs) == 0 {
			return nil, fmt.Errorf("config: strategy %q requires at least one server", c.Strategy)
		}
		return &serverset.RoundRobin{Addresses: addrs}, nil
	case "failover":
		if len(addrs) == 0 {
			return nil, fmt.Errorf("config: strategy %q requires at least one server", c.Strategy)
		}
		return &serverset.Failover{Addresses: addrs}, nil
	default:
		return nil, fmt.Errorf("config: unknown server set strategy %q", c.Strategy)
	}
}
