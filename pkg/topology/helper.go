// Package topology implements the GNS3 graph operations gns3cp is built on:
// one project per reservation, switches, template and node creation, port
// allocation on shared switches, and link creation with conflict recovery.
//
// Concurrent deployments into the same project are not coordinated locally.
// Port allocation is optimistic and a 409 on link creation is resolved by
// re-reading the project links (see Connect).
package topology

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/newtron-network/gns3cp/pkg/gns3"
)

// Defaults used by DefaultConfig.
const (
	DefaultConnectRetries = 5
	DefaultCompute        = "local"
	DefaultCacheTTL       = 5 * time.Minute
)

// API is the subset of the GNS3 REST client the helper needs. *gns3.Client
// satisfies it.
type API interface {
	ListProjects(ctx context.Context) ([]gns3.Project, error)
	CreateProject(ctx context.Context, name string) (*gns3.Project, error)
	DeleteProject(ctx context.Context, projectID string) error

	ListNodes(ctx context.Context, projectID string) ([]gns3.Node, error)
	GetNode(ctx context.Context, projectID, nodeID string) (*gns3.Node, error)
	CreateNode(ctx context.Context, projectID string, payload map[string]interface{}) (*gns3.Node, error)
	CreateNodeFromTemplate(ctx context.Context, projectID, templateID string, payload map[string]interface{}) (*gns3.Node, error)
	UpdateNode(ctx context.Context, projectID, nodeID string, payload map[string]interface{}) (*gns3.Node, error)
	DeleteNode(ctx context.Context, projectID, nodeID string) error

	ListLinks(ctx context.Context, projectID string) ([]gns3.Link, error)
	CreateLink(ctx context.Context, projectID string, link gns3.Link) (*gns3.Link, error)

	ListComputes(ctx context.Context) ([]gns3.Compute, error)
	ListTemplates(ctx context.Context) ([]gns3.Template, error)
	DuplicateTemplate(ctx context.Context, templateID string) (*gns3.Template, error)
	UpdateTemplate(ctx context.Context, templateID string, payload map[string]interface{}) error
	DeleteTemplate(ctx context.Context, templateID string) error
}

// Config tunes the helper.
type Config struct {
	// ConnectRetries caps link-create attempts per Connect call.
	ConnectRetries int
	// CloudTemplateID and SwitchTemplateID are the built-in templates used
	// for the uplink cloud and for every switch.
	CloudTemplateID  string
	SwitchTemplateID string
	// DefaultCompute hosts switches and clouds, and nodes whose request
	// names no server.
	DefaultCompute string
	// CacheTTL bounds how long compute and template name lookups are
	// reused. Zero disables the cache.
	CacheTTL time.Duration
}

// DefaultConfig returns the stock configuration for a GNS3 2.x server.
func DefaultConfig() Config {
	return Config{
		ConnectRetries:   DefaultConnectRetries,
		CloudTemplateID:  gns3.CloudTemplateID,
		SwitchTemplateID: gns3.EthernetSwitchTemplateID,
		DefaultCompute:   DefaultCompute,
		CacheTTL:         DefaultCacheTTL,
	}
}

// Helper performs topology operations against one GNS3 server. It holds no
// per-project state and is safe for concurrent use.
type Helper struct {
	api   API
	cfg   Config
	names *cache.Cache
}

// NewHelper returns a helper. Zero-valued config fields fall back to
// DefaultConfig.
func NewHelper(api API, cfg Config) *Helper {
	def := DefaultConfig()
	if cfg.ConnectRetries < 1 {
		cfg.ConnectRetries = def.ConnectRetries
	}
	if cfg.CloudTemplateID == "" {
		cfg.CloudTemplateID = def.CloudTemplateID
	}
	if cfg.SwitchTemplateID == "" {
		cfg.SwitchTemplateID = def.SwitchTemplateID
	}
	if cfg.DefaultCompute == "" {
		cfg.DefaultCompute = def.DefaultCompute
	}

	h := &Helper{api: api, cfg: cfg}
	if cfg.CacheTTL > 0 {
		h.names = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return h
}

// Config returns the effective configuration.
func (h *Helper) Config() Config {
	return h.cfg
}
