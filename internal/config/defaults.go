package config

import "time"

// DefaultConfig returns a Config with sensible default values, matching
// conn.DefaultOptions and pool.Config's own defaults so a caller can
// start from an empty file and override only what differs.
func DefaultConfig() *Config {
	return &Config{
		Strategy: "single",
		Dial: DialConfig{
			AutoReconnect:          false,
			FollowReferrals:        false,
			ReferralHopLimit:       5,
			UseKeepAlive:           true,
			UseTCPNoDelay:          true,
			UseReuseAddress:        true,
			UseLinger:              true,
			LingerTimeout:          5 * time.Second,
			ConnectTimeout:         60 * time.Second,
			ResponseTimeout:        300 * time.Second,
			MaxMessageSize:         20 * 1024 * 1024,
			UseSynchronousMode:     false,
			BindDNRequiresPassword: true,
		},
		Pool: PoolConfig{
			InitialSize:  0,
			MaxSize:      8,
			IdleInterval: 30 * time.Second,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}
