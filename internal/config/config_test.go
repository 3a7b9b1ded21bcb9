package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	t.Run("strategy default", func(t *testing.T) {
		if config.Strategy != "single" {
			t.Errorf("expected strategy 'single', got %q", config.Strategy)
		}
	})

	t.Run("dial defaults", func(t *testing.T) {
		if config.Dial.ConnectTimeout != 60*time.Second {
			t.Errorf("expected connect timeout 60s, got %v", config.Dial.ConnectTimeout)
		}
		if config.Dial.ResponseTimeout != 300*time.Second {
			t.Errorf("expected response timeout 300s, got %v", config.Dial.ResponseTimeout)
		}
		if config.Dial.MaxMessageSize != 20*1024*1024 {
			t.Errorf("expected max message size 20MiB, got %d", config.Dial.MaxMessageSize)
		}
		if !config.Dial.BindDNRequiresPassword {
			t.Error("expected bindDNRequiresPassword default true")
		}
		if !config.Dial.UseReuseAddress {
			t.Error("expected useReuseAddress default true")
		}
	})

	t.Run("pool defaults", func(t *testing.T) {
		if config.Pool.MaxSize != 8 {
			t.Errorf("expected max pool size 8, got %d", config.Pool.MaxSize)
		}
	})

	t.Run("logging defaults", func(t *testing.T) {
		if config.Logging.Level != "info" {
			t.Errorf("expected log level 'info', got %q", config.Logging.Level)
		}
		if config.Logging.Format != "text" {
			t.Errorf("expected log format 'text', got %q", config.Logging.Format)
		}
	})
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	data := []byte(`
servers:
  - host: ldap1.example.com
    port: 389
  - host: ldap2.example.com
    port: 389
strategy: roundRobin
bind:
  dn: "cn=admin,dc=example,dc=com"
  password: "secret"
dial:
  connectTimeout: 5s
pool:
  maxSize: 20
`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if len(cfg.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(cfg.Servers))
	}
	if cfg.Servers[0].Host != "ldap1.example.com" || cfg.Servers[0].Port != 389 {
		t.Errorf("unexpected first server: %+v", cfg.Servers[0])
	}
	if cfg.Strategy != "roundRobin" {
		t.Errorf("expected strategy roundRobin, got %q", cfg.Strategy)
	}
	if cfg.Bind.DN != "cn=admin,dc=example,dc=com" {
		t.Errorf("unexpected bind dn %q", cfg.Bind.DN)
	}
	if cfg.Dial.ConnectTimeout != 5*time.Second {
		t.Errorf("expected overridden connect timeout 5s, got %v", cfg.Dial.ConnectTimeout)
	}
	if cfg.Pool.MaxSize != 20 {
		t.Errorf("expected overridden max pool size 20, got %d", cfg.Pool.MaxSize)
	}
	// Fields not set in the YAML keep their defaults.
	if cfg.Dial.ResponseTimeout != 300*time.Second {
		t.Errorf("expected untouched default response timeout, got %v", cfg.Dial.ResponseTimeout)
	}
}

func TestParseConfigEnvVarSubstitution(t *testing.T) {
	os.Setenv("OBA_TEST_BIND_PASSWORD", "from-env")
	defer os.Unsetenv("OBA_TEST_BIND_PASSWORD")

	data := []byte(`
servers:
  - host: ldap.example.com
    port: 389
bind:
  password: "${OBA_TEST_BIND_PASSWORD}"
`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Bind.Password != "from-env" {
		t.Errorf("expected password substituted from env, got %q", cfg.Bind.Password)
	}
}

func TestParseConfigEnvVarDefault(t *testing.T) {
	os.Unsetenv("OBA_TEST_MISSING_VAR")

	data := []byte(`
servers:
  - host: ldap.example.com
    port: 389
bind:
  password: "${OBA_TEST_MISSING_VAR:-fallback}"
`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Bind.Password != "fallback" {
		t.Errorf("expected fallback default, got %q", cfg.Bind.Password)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != ErrFileNotFound {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Servers = []ServerEndpoint{{Host: "ldap.example.com", Port: 389}}
		if errs := ValidateConfig(cfg); len(errs) != 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	t.Run("missing servers", func(t *testing.T) {
		cfg := DefaultConfig()
		if errs := ValidateConfig(cfg); len(errs) == 0 {
			t.Error("expected validation error for missing servers")
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Servers = []ServerEndpoint{{Host: "ldap.example.com", Port: 70000}}
		if errs := ValidateConfig(cfg); len(errs) == 0 {
			t.Error("expected validation error for invalid port")
		}
	})

	t.Run("invalid bind dn", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Servers = []ServerEndpoint{{Host: "ldap.example.com", Port: 389}}
		cfg.Bind.DN = "not a dn"
		if errs := ValidateConfig(cfg); len(errs) == 0 {
			t.Error("expected validation error for malformed bind DN")
		}
	})

	t.Run("pool initialSize exceeds maxSize", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Servers = []ServerEndpoint{{Host: "ldap.example.com", Port: 389}}
		cfg.Pool.InitialSize = 10
		cfg.Pool.MaxSize = 2
		if errs := ValidateConfig(cfg); len(errs) == 0 {
			t.Error("expected validation error for initialSize > maxSize")
		}
	})
}

func TestToServerSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servers = []ServerEndpoint{{Host: "a", Port: 389}, {Host: "b", Port: 389}}

	t.Run("single uses first server only", func(t *testing.T) {
		cfg.Strategy = "single"
		set, err := cfg.ToServerSet()
		if err != nil {
			t.Fatalf("ToServerSet: %v", err)
		}
		if set == nil {
			t.Fatal("expected a non-nil server set")
		}
	})

	t.Run("unknown strategy errors", func(t *testing.T) {
		cfg.Strategy = "bogus"
		if _, err := cfg.ToServerSet(); err == nil {
			t.Error("expected error for unknown strategy")
		}
	})

	t.Run("roundRobin requires servers", func(t *testing.T) {
		empty := DefaultConfig()
		empty.Strategy = "roundRobin"
		if _, err := empty.ToServerSet(); err == nil {
			t.Error("expected error for empty server list")
		}
	})
}

func TestConfigManagerWatchesFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	initial := []byte(`
servers:
  - host: ldap.example.com
    port: 389
`)
	if err := os.WriteFile(path, initial, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	mgr := NewConfigManager(cfg, path)

	swapped := make(chan *Config, 1)
	mgr.SetOnUpdate(func(old, new *Config) {
		swapped <- new
	})

	if err := mgr.StartWatching(10*time.Millisecond, 20*time.Millisecond); err != nil {
		t.Fatalf("StartWatching: %v", err)
	}
	defer mgr.StopWatching()

	if err := mgr.StartWatching(10*time.Millisecond, 20*time.Millisecond); err == nil {
		t.Error("second StartWatching succeeded, want error")
	}

	updated := []byte(`
# failover pair
servers:
  - host: ldap.example.com
    port: 636
  - host: ldap2.example.com
    port: 636
strategy: failover
`)
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case newCfg := <-swapped:
		if newCfg.Strategy != "failover" || len(newCfg.Servers) != 2 {
			t.Errorf("watched config = strategy %q with %d servers, want failover with 2", newCfg.Strategy, len(newCfg.Servers))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never delivered the changed config")
	}

	if mgr.GetConfig().Strategy != "failover" {
		t.Errorf("GetConfig().Strategy = %q, want failover", mgr.GetConfig().Strategy)
	}

	mgr.StopWatching()
	mgr.StopWatching() // idempotent
}

func TestConfigManagerReloadAndRedacted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	initial := []byte(`
servers:
  - host: ldap.example.com
    port: 389
bind:
  password: "topsecret"
`)
	if err := os.WriteFile(path, initial, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	mgr := NewConfigManager(cfg, path)

	redacted := mgr.Redacted()
	if redacted.Bind.Password != "********" {
		t.Errorf("expected redacted password, got %q", redacted.Bind.Password)
	}
	if mgr.GetConfig().Bind.Password != "topsecret" {
		t.Error("Redacted must not mutate the live config")
	}

	updated := []byte(`
servers:
  - host: ldap.example.com
    port: 636
bind:
  password: "topsecret"
`)
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	var gotOld, gotNew *Config
	done := make(chan struct{})
	mgr.SetOnUpdate(func(old, new *Config) {
		gotOld, gotNew = old, new
		close(done)
	})

	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	<-done

	if gotOld.Servers[0].Port != 389 {
		t.Errorf("expected old config port 389, got %d", gotOld.Servers[0].Port)
	}
	if gotNew.Servers[0].Port != 636 {
		t.Errorf("expected new config port 636, got %d", gotNew.Servers[0].Port)
	}
	if mgr.GetConfig().Servers[0].Port != 636 {
		t.Error("expected manager's config to be swapped to the reloaded value")
	}
}
