package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newtron-network/gns3cp/pkg/audit"
	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/topology"
	"github.com/newtron-network/gns3cp/pkg/util"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gns3cp.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Server.Port != 3080 {
		t.Errorf("Server.Port = %d, want 3080", s.Server.Port)
	}
	if s.Server.Scheme != "http" {
		t.Errorf("Server.Scheme = %q, want http", s.Server.Scheme)
	}
	if s.Server.Timeout != gns3.DefaultTimeout {
		t.Errorf("Server.Timeout = %v, want %v", s.Server.Timeout, gns3.DefaultTimeout)
	}
	if s.Topology.ConnectRetries != topology.DefaultConnectRetries {
		t.Errorf("Topology.ConnectRetries = %d, want %d", s.Topology.ConnectRetries, topology.DefaultConnectRetries)
	}
	if s.Topology.SwitchTemplateID != gns3.EthernetSwitchTemplateID {
		t.Errorf("Topology.SwitchTemplateID = %q", s.Topology.SwitchTemplateID)
	}
	if s.Store.Backend != "file" {
		t.Errorf("Store.Backend = %q, want file", s.Store.Backend)
	}
	if s.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", s.Logging.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 10.0.0.5
  port: 3081
  user: admin
  password: secret
  timeout: 15s
  rate_limit: 20
  burst: 5
topology:
  connect_retries: 3
  cache_ttl: 0s
store:
  backend: redis
  redis_addr: 127.0.0.1:6379
  redis_db: 2
logging:
  level: debug
  format: json
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.ServerURL(); got != "http://10.0.0.5:3081" {
		t.Errorf("ServerURL() = %q", got)
	}
	if s.Server.Timeout != 15*time.Second {
		t.Errorf("Server.Timeout = %v, want 15s", s.Server.Timeout)
	}
	if s.Server.RateLimit != 20 || s.Server.Burst != 5 {
		t.Errorf("rate = %v/%d, want 20/5", s.Server.RateLimit, s.Server.Burst)
	}

	tc := s.TopologyConfig()
	if tc.ConnectRetries != 3 {
		t.Errorf("TopologyConfig().ConnectRetries = %d, want 3", tc.ConnectRetries)
	}
	if tc.CacheTTL != 0 {
		t.Errorf("TopologyConfig().CacheTTL = %v, want 0", tc.CacheTTL)
	}
	if tc.CloudTemplateID != gns3.CloudTemplateID {
		t.Errorf("TopologyConfig().CloudTemplateID = %q, want default", tc.CloudTemplateID)
	}

	so := s.StoreOptions()
	if so.Backend != "redis" || so.RedisAddr != "127.0.0.1:6379" || so.RedisDB != 2 {
		t.Errorf("StoreOptions() = %+v", so)
	}
	if len(s.ClientOptions()) != 3 {
		t.Errorf("ClientOptions() len = %d, want 3", len(s.ClientOptions()))
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  address: 10.0.0.5\n")
	t.Setenv("GNS3CP_SERVER_ADDRESS", "gns3.lab")
	t.Setenv("GNS3CP_TOPOLOGY_CONNECT_RETRIES", "7")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Server.Address != "gns3.lab" {
		t.Errorf("Server.Address = %q, want gns3.lab", s.Server.Address)
	}
	if s.Topology.ConnectRetries != 7 {
		t.Errorf("Topology.ConnectRetries = %d, want 7", s.Topology.ConnectRetries)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad scheme", "server:\n  scheme: ftp\n", "server.scheme"},
		{"zero retries", "topology:\n  connect_retries: 0\n", "topology.connect_retries"},
		{"redis without addr", "store:\n  backend: redis\n", "store.redis_addr"},
		{"unknown backend", "store:\n  backend: etcd\n", "store.backend"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("Load() error = %v, want ErrValidationFailed", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.field)
			}
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unterminated\n"))
	if err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
	if errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("Load() error = %v, want a read error", err)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s.Server.Address = "192.0.2.10"
	s.Topology.ConnectRetries = 4

	path := filepath.Join(t.TempDir(), "sub", "gns3cp.yaml")
	if err := s.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after SaveTo error = %v", err)
	}
	if got.Server.Address != "192.0.2.10" || got.Topology.ConnectRetries != 4 {
		t.Errorf("reloaded = %+v / %+v", got.Server, got.Topology)
	}
	if got.Topology.CacheTTL != s.Topology.CacheTTL {
		t.Errorf("CacheTTL = %v, want %v", got.Topology.CacheTTL, s.Topology.CacheTTL)
	}
}

func TestRedacted(t *testing.T) {
	s := &Settings{Server: ServerSettings{Password: "secret"}}
	r := s.Redacted()
	if r.Server.Password == "secret" {
		t.Error("Redacted() kept the password")
	}
	if s.Server.Password != "secret" {
		t.Error("Redacted() modified the original")
	}
}

func TestOpenAudit(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Audit.MaxBackups != 5 || s.Audit.MaxSize != 10<<20 {
		t.Errorf("Audit = %+v", s.Audit)
	}

	s.Audit.Path = filepath.Join(t.TempDir(), "audit.log")
	l, err := s.OpenAudit()
	if err != nil {
		t.Fatalf("OpenAudit() error = %v", err)
	}
	defer l.Close()
	if _, err := os.Stat(s.Audit.Path); err != nil {
		t.Errorf("audit log not created: %v", err)
	}

	s.Audit.Path = ""
	d, err := s.OpenAudit()
	if err != nil {
		t.Fatalf("OpenAudit() error = %v", err)
	}
	if events, _ := d.Query(audit.Filter{}); len(events) != 0 {
		t.Errorf("disabled audit returned %d events", len(events))
	}
}
