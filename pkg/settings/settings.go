// Package settings loads gns3cp configuration.
//
// Sources, later overriding earlier:
//  1. Built-in defaults
//  2. A YAML file (explicit path, or gns3cp.yaml in ., ~/.gns3cp, /etc/gns3cp)
//  3. Environment variables with the GNS3CP_ prefix, dots as underscores
//     (GNS3CP_SERVER_ADDRESS, GNS3CP_TOPOLOGY_CONNECT_RETRIES, ...)
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/gns3cp/pkg/audit"
	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/state"
	"github.com/newtron-network/gns3cp/pkg/topology"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "GNS3CP"

// Settings is the root configuration.
type Settings struct {
	Server   ServerSettings   `mapstructure:"server" yaml:"server"`
	Topology TopologySettings `mapstructure:"topology" yaml:"topology"`
	Store    StoreSettings    `mapstructure:"store" yaml:"store"`
	API      APISettings      `mapstructure:"api" yaml:"api"`
	Audit    AuditSettings    `mapstructure:"audit" yaml:"audit"`
	Logging  LoggingSettings  `mapstructure:"logging" yaml:"logging"`
}

// ServerSettings locates the GNS3 server.
type ServerSettings struct {
	Address  string        `mapstructure:"address" yaml:"address" validate:"required"`
	Port     int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Scheme   string        `mapstructure:"scheme" yaml:"scheme" validate:"oneof=http https"`
	User     string        `mapstructure:"user" yaml:"user,omitempty"`
	Password string        `mapstructure:"password" yaml:"password,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RateLimit is requests per second to the server; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
}

// TopologySettings tunes the topology helper.
type TopologySettings struct {
	ConnectRetries   int           `mapstructure:"connect_retries" yaml:"connect_retries" validate:"min=1"`
	CloudTemplateID  string        `mapstructure:"cloud_template_id" yaml:"cloud_template_id" validate:"required"`
	SwitchTemplateID string        `mapstructure:"switch_template_id" yaml:"switch_template_id" validate:"required"`
	DefaultCompute   string        `mapstructure:"default_compute" yaml:"default_compute" validate:"required"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// StoreSettings selects where deployment records are kept.
type StoreSettings struct {
	Backend     string `mapstructure:"backend" yaml:"backend" validate:"oneof=file redis"`
	Dir         string `mapstructure:"dir" yaml:"dir,omitempty"`
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty" validate:"required_if=Backend redis"`
	RedisDB     int    `mapstructure:"redis_db" yaml:"redis_db" validate:"gte=0"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix,omitempty"`
}

// APISettings configures the HTTP driver endpoint served by "gns3cp serve".
type APISettings struct {
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required"`
}

// AuditSettings configures the operation audit log. An empty path
// disables it.
type AuditSettings struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSize    int64  `mapstructure:"max_size" yaml:"max_size" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
}

// LoggingSettings configures logrus.
type LoggingSettings struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// DefaultSettingsPath returns ~/.gns3cp/gns3cp.yaml.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gns3cp.yaml"
	}
	return filepath.Join(home, ".gns3cp", "gns3cp.yaml")
}

// Load reads configuration from cfgFile, or from the search path when
// cfgFile is empty. A missing file is not an error; defaults and the
// environment still apply.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("gns3cp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.gns3cp")
		v.AddConfigPath("/etc/gns3cp")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isFileNotFoundError(err) {
			return nil, fmt.Errorf("settings: read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("settings: decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 3080)
	v.SetDefault("server.scheme", "http")
	v.SetDefault("server.user", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.timeout", gns3.DefaultTimeout)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.burst", 1)

	v.SetDefault("topology.connect_retries", topology.DefaultConnectRetries)
	v.SetDefault("topology.cloud_template_id", gns3.CloudTemplateID)
	v.SetDefault("topology.switch_template_id", gns3.EthernetSwitchTemplateID)
	v.SetDefault("topology.default_compute", topology.DefaultCompute)
	v.SetDefault("topology.cache_ttl", topology.DefaultCacheTTL)

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", state.DefaultDir())
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", state.DefaultRedisPrefix)

	v.SetDefault("api.listen", "127.0.0.1:8085")

	v.SetDefault("audit.path", audit.DefaultPath())
	v.SetDefault("audit.max_size", 10<<20)
	v.SetDefault("audit.max_backups", 5)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
}

var structValidator = newValidator()

// newValidator reports fields by their config key rather than Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}

// Validate checks every section and reports all problems at once.
func (s *Settings) Validate() error {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	b := &util.ValidationBuilder{}
	for _, fe := range verrs {
		b.AddErrorf("%s: failed %q (value %v)", fieldPath(fe), fe.Tag(), fe.Value())
	}
	return b.Build()
}

// fieldPath turns "Settings.server.port" into "server.port".
func fieldPath(fe validator.FieldError) string {
	return strings.TrimPrefix(fe.Namespace(), "Settings.")
}

// ServerURL is the base URL of the GNS3 server.
func (s *Settings) ServerURL() string {
	return gns3.ServerURL(s.Server.Scheme, s.Server.Address, s.Server.Port)
}

// ClientOptions returns the gns3.Client options implied by the server section.
func (s *Settings) ClientOptions() []gns3.Option {
	opts := []gns3.Option{gns3.WithRateLimit(s.Server.RateLimit, s.Server.Burst)}
	if s.Server.Timeout > 0 {
		opts = append(opts, gns3.WithTimeout(s.Server.Timeout))
	}
	if s.Server.User != "" {
		opts = append(opts, gns3.WithBasicAuth(s.Server.User, s.Server.Password))
	}
	return opts
}

// TopologyConfig converts the topology section.
func (s *Settings) TopologyConfig() topology.Config {
	return topology.Config{
		ConnectRetries:   s.Topology.ConnectRetries,
		CloudTemplateID:  s.Topology.CloudTemplateID,
		SwitchTemplateID: s.Topology.SwitchTemplateID,
		DefaultCompute:   s.Topology.DefaultCompute,
		CacheTTL:         s.Topology.CacheTTL,
	}
}

// StoreOptions converts the store section.
func (s *Settings) StoreOptions() state.Options {
	return state.Options{
		Backend:     s.Store.Backend,
		Dir:         s.Store.Dir,
		RedisAddr:   s.Store.RedisAddr,
		RedisDB:     s.Store.RedisDB,
		RedisPrefix: s.Store.RedisPrefix,
	}
}

// OpenAudit opens the configured audit log, or returns audit.Discard when
// no path is set.
func (s *Settings) OpenAudit() (audit.Logger, error) {
	if s.Audit.Path == "" {
		return audit.Discard, nil
	}
	return audit.NewFileLogger(s.Audit.Path, audit.RotationConfig{
		MaxSize:    s.Audit.MaxSize,
		MaxBackups: s.Audit.MaxBackups,
	})
}

// Redacted returns a copy with the password masked, for display.
func (s *Settings) Redacted() *Settings {
	c := *s
	if c.Server.Password != "" {
		c.Server.Password = "********"
	}
	return &c
}

// Marshal renders the settings as YAML.
func (s *Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// SaveTo writes the settings as YAML to path, creating its directory.
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("settings: create config dir: %w", err)
	}
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	// The file may carry the server password.
	return os.WriteFile(path, data, 0600)
}

func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
