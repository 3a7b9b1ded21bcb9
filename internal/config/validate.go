package config

import (
	"fmt"
	"strings"

	"github.com/oba-ldap/oba/internal/dn"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of
// validation errors. An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error

	errs = append(errs, validateServers(config.Servers, config.Strategy)...)
	errs = append(errs, validateBindConfig(&config.Bind)...)
	errs = append(errs, validateTLSConfig(&config.TLS)...)
	errs = append(errs, validateDialConfig(&config.Dial)...)
	errs = append(errs, validatePoolConfig(&config.Pool)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)

	return errs
}

func validateServers(servers []ServerEndpoint, strategy string) []error {
	var errs []error

	switch strategy {
	case "", "single", "roundRobin", "failover":
	default:
		errs = append(errs, ValidationError{
			Field:   "strategy",
			Message: fmt.Sprintf("unknown server set strategy %q", strategy),
		})
	}

	if len(servers) == 0 {
		errs = append(errs, ValidationError{
			Field:   "servers",
			Message: "at least one server is required",
		})
	}
	if strategy == "" || strategy == "single" {
		if len(servers) > 1 {
			errs = append(errs, ValidationError{
				Field:   "servers",
				Message: "strategy \"single\" uses only the first configured server",
			})
		}
	}

	for i, s := range servers {
		if s.Host == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("servers[%d].host", i),
				Message: "host is required",
			})
		}
		if s.Port <= 0 || s.Port > 65535 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("servers[%d].port", i),
				Message: "port must be between 1 and 65535",
			})
		}
	}

	return errs
}

func validateBindConfig(b *BindConfig) []error {
	var errs []error

	if b.DN != "" {
		if _, err := dn.Parse(b.DN); err != nil {
			errs = append(errs, ValidationError{
				Field:   "bind.dn",
				Message: err.Error(),
			})
		}
	}

	if b.SASLMechanism != "" && b.DN != "" {
		errs = append(errs, ValidationError{
			Field:   "bind.saslMechanism",
			Message: "saslMechanism and dn/password are mutually exclusive bind styles",
		})
	}

	return errs
}

func validateTLSConfig(t *TLSConfig) []error {
	var errs []error
	if !t.Enabled {
		return errs
	}

	if (t.CertFile == "") != (t.KeyFile == "") {
		errs = append(errs, ValidationError{
			Field:   "tls.certFile",
			Message: "certFile and keyFile must both be set or both be empty",
		})
	}

	return errs
}

func validateDialConfig(d *DialConfig) []error {
	var errs []error

	if d.ReferralHopLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "dial.referralHopLimit",
			Message: "must not be negative",
		})
	}
	if d.ConnectTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "dial.connectTimeout",
			Message: "must not be negative",
		})
	}
	if d.ResponseTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "dial.responseTimeout",
			Message: "must not be negative",
		})
	}
	if d.MaxMessageSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "dial.maxMessageSize",
			Message: "must not be negative",
		})
	}

	return errs
}

func validatePoolConfig(p *PoolConfig) []error {
	var errs []error

	if p.MaxSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "pool.maxSize",
			Message: "must be at least 1",
		})
	}
	if p.InitialSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "pool.initialSize",
			Message: "must not be negative",
		})
	}
	if p.MaxSize > 0 && p.InitialSize > p.MaxSize {
		errs = append(errs, ValidationError{
			Field:   "pool.initialSize",
			Message: "must not exceed pool.maxSize",
		})
	}

	return errs
}

func validateLogConfig(l *LogConfig) []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if l.Level != "" && !validLevels[strings.ToLower(l.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level: %s", l.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if l.Format != "" && !validFormats[strings.ToLower(l.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format: %s", l.Format),
		})
	}

	return errs
}
