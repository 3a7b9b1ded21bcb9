// Package config provides configuration loading and management for the
// Oba LDAP client.
//
// # Overview
//
// The config package handles loading, parsing, and validating client
// configuration from YAML files and environment variables. It supports:
//
//   - YAML configuration files (via gopkg.in/yaml.v3)
//   - Environment variable overrides (${VAR} / ${VAR:-default})
//   - Default values for all settings
//   - Configuration validation
//   - Hot reload, on demand via ConfigManager.Reload or continuously via
//     ConfigManager.StartWatching (backed by ConfigWatcher)
//
// # Configuration Structure
//
// The main Config struct contains all client settings:
//
//	type Config struct {
//	    Servers  []ServerEndpoint // directory servers to dial
//	    Strategy string          // "single", "roundRobin", "failover"
//	    Bind     BindConfig      // simple or SASL bind credentials
//	    TLS      TLSConfig       // TLS material
//	    Dial     DialConfig      // per-socket behavior (see internal/conn.Options)
//	    Pool     PoolConfig      // connection pool sizing
//	    Logging  LogConfig       // logging settings
//	}
//
// # Loading Configuration
//
//	cfg, err := config.LoadConfig("/etc/oba/client.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Or start from defaults:
//
//	cfg := config.DefaultConfig()
//
// # Environment Variables
//
// Configuration values can reference environment variables directly in
// the YAML text:
//
//	bind:
//	  dn: "cn=admin,dc=example,dc=com"
//	  password: "${OBA_BIND_PASSWORD}"
//
// # Example Configuration
//
//	servers:
//	  - host: ldap1.example.com
//	    port: 389
//	  - host: ldap2.example.com
//	    port: 389
//	strategy: roundRobin
//
//	bind:
//	  dn: "cn=admin,dc=example,dc=com"
//	  password: "${OBA_BIND_PASSWORD}"
//
//	tls:
//	  enabled: true
//	  caFile: "/etc/oba/certs/ca.crt"
//	  serverName: "ldap.example.com"
//
//	dial:
//	  connectTimeout: 10s
//	  responseTimeout: 30s
//	  followReferrals: true
//
//	pool:
//	  initialSize: 2
//	  maxSize: 16
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stdout"
package config
