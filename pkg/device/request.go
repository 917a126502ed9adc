package device

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Attribute names, relative to the deployment path. A request for path
// "GNS3 QEMU" stores RAM under "GNS3 QEMU.Ram".
const (
	AttrRAM               = "Ram"
	AttrServer            = "Server"
	AttrTemplateName      = "Template Name"
	AttrAdditionalConfig  = "Additional Configuration"
	AttrShrinkInterfaces  = "Shrink Interfaces"
	AttrConnectManagement = "Connect Management"
	AttrHDADiskImage      = "HDA Disk Image"
	AttrQEMUPath          = "QEMU Path"
	AttrImage             = "Image"
	AttrPlatform          = "Platform"
)

// App resource attribute names.
const (
	AttrUser     = "User"
	AttrPassword = "Password"
)

// DefaultRAM is used when the request does not size the node (MB).
const DefaultRAM = 512

// Request describes one device to deploy. It lives for a single deploy call.
type Request struct {
	ActionID       string            `json:"action_id" yaml:"action_id"`
	AppName        string            `json:"app_name" yaml:"app_name" validate:"required"`
	DeploymentPath string            `json:"deployment_path" yaml:"deployment_path" validate:"required"`
	Attributes     map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	AppResource    map[string]string `json:"app_resource,omitempty" yaml:"app_resource,omitempty"`
}

// Attr returns the deployment attribute name scoped to the deployment path.
func (r *Request) Attr(name string) string {
	return r.Attributes[r.DeploymentPath+"."+name]
}

func (r *Request) attrOr(name, def string) string {
	if v := r.Attr(name); v != "" {
		return v
	}
	return def
}

func (r *Request) boolAttr(name string, def bool) bool {
	v := strings.TrimSpace(r.Attr(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// RAM returns the requested memory in MB, or DefaultRAM.
func (r *Request) RAM() (int, error) {
	v := strings.TrimSpace(r.Attr(AttrRAM))
	if v == "" {
		return DefaultRAM, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("device: %s.%s: invalid RAM %q", r.DeploymentPath, AttrRAM, v)
	}
	return n, nil
}

// Server is the compute name or ID the node should run on.
func (r *Request) Server() string {
	return r.Attr(AttrServer)
}

// User and Password come from the app resource and are reported back to
// the caller after deployment.
func (r *Request) User() string     { return r.AppResource[AttrUser] }
func (r *Request) Password() string { return r.AppResource[AttrPassword] }

// ConnectManagement is false only when the request explicitly exempts the
// node from the management switch.
func (r *Request) ConnectManagement() bool {
	return r.boolAttr(AttrConnectManagement, true)
}

// AdditionalConfig parses the free-form JSON blob. Empty means no overrides.
func (r *Request) AdditionalConfig() (map[string]interface{}, error) {
	raw := strings.TrimSpace(r.Attr(AttrAdditionalConfig))
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("device: %s.%s: %w", r.DeploymentPath, AttrAdditionalConfig, err)
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}
