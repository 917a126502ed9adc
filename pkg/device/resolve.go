// Package device turns a deployment request into a GNS3 node-creation
// payload. Each device kind builds its payload independently; user
// "Additional Configuration" JSON is merged over the computed defaults and
// wins on collision.
package device

import (
	"fmt"
)

// QEMU defaults.
const (
	DefaultQEMUAdapters    = 4
	DefaultQEMUAdapterType = "e1000"
	DefaultQEMUPath        = "qemu-system-x86_64"
	DefaultFirstPortName   = "mgmt0/0"
)

// DynamipsSlots is the number of slot attributes ("Slot 1".."Slot 6") read
// for dynamips routers.
const DynamipsSlots = 6

// Spec is the resolved form of a Request: either a *TemplateSpec or a
// *NodeSpec.
type Spec interface {
	Kind() Kind
	Name() string
}

// TemplateSpec clones an existing template by name.
type TemplateSpec struct {
	AppName      string
	TemplateName string
	// ShrinkInterfaces requests an adapter count sized to the number of
	// subnets (plus management) instead of the template's own count.
	ShrinkInterfaces bool
	// Config is merged into the template patch (duplicate path) or the
	// instantiation payload (direct path).
	Config map[string]interface{}
}

func (s *TemplateSpec) Kind() Kind   { return KindTemplate }
func (s *TemplateSpec) Name() string { return s.AppName }

// InterfaceCount returns the adapter count to request for the given number
// of subnet connections, or 0 to keep the template's count.
func (s *TemplateSpec) InterfaceCount(subnets int) int {
	if !s.ShrinkInterfaces {
		return 0
	}
	return subnets + 1
}

// NodeSpec creates a node from an explicit payload.
type NodeSpec struct {
	kind    Kind
	AppName string
	// Server is the compute name or ID, resolved at creation time.
	Server  string
	payload map[string]interface{}
}

func (s *NodeSpec) Kind() Kind   { return s.kind }
func (s *NodeSpec) Name() string { return s.AppName }

// ComputeOverridden reports whether the user configuration already pins
// compute_id, in which case Server is not resolved.
func (s *NodeSpec) ComputeOverridden() bool {
	_, ok := s.payload["compute_id"]
	return ok
}

// Properties returns a copy of the node properties.
func (s *NodeSpec) Properties() map[string]interface{} {
	props, _ := s.payload["properties"].(map[string]interface{})
	return copyMap(props)
}

// Payload returns the creation payload with compute_id filled in, unless the
// user configuration already set one.
func (s *NodeSpec) Payload(computeID string) map[string]interface{} {
	out := copyMap(s.payload)
	if props, ok := out["properties"].(map[string]interface{}); ok {
		out["properties"] = copyMap(props)
	}
	if _, ok := out["compute_id"]; !ok {
		out["compute_id"] = computeID
	}
	return out
}

// Resolve picks the construction strategy for req.
func Resolve(req *Request) (Spec, error) {
	kind, err := ParseKind(req.DeploymentPath)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindTemplate:
		return resolveTemplate(req)
	case KindQEMU:
		return resolveQEMU(req)
	case KindDynamips:
		return resolveDynamips(req)
	}
	return nil, fmt.Errorf("device: unhandled kind %s", kind)
}

func resolveTemplate(req *Request) (*TemplateSpec, error) {
	name := req.Attr(AttrTemplateName)
	if name == "" {
		return nil, fmt.Errorf("device: %s.%s is required", req.DeploymentPath, AttrTemplateName)
	}
	cfg, err := req.AdditionalConfig()
	if err != nil {
		return nil, err
	}
	return &TemplateSpec{
		AppName:          req.AppName,
		TemplateName:     name,
		ShrinkInterfaces: req.boolAttr(AttrShrinkInterfaces, false),
		Config:           cfg,
	}, nil
}

func resolveQEMU(req *Request) (*NodeSpec, error) {
	ram, err := req.RAM()
	if err != nil {
		return nil, err
	}
	cfg, err := req.AdditionalConfig()
	if err != nil {
		return nil, err
	}

	base := map[string]interface{}{
		"node_type":       KindQEMU.NodeType(),
		"name":            req.AppName,
		"first_port_name": DefaultFirstPortName,
	}
	props := map[string]interface{}{
		"hda_disk_image": req.Attr(AttrHDADiskImage),
		"ram":            ram,
		"adapters":       DefaultQEMUAdapters,
		"adapter_type":   DefaultQEMUAdapterType,
		"qemu_path":      req.attrOr(AttrQEMUPath, DefaultQEMUPath),
	}
	return &NodeSpec{
		kind:    KindQEMU,
		AppName: req.AppName,
		Server:  req.Server(),
		payload: merge(base, props, cfg),
	}, nil
}

func resolveDynamips(req *Request) (*NodeSpec, error) {
	ram, err := req.RAM()
	if err != nil {
		return nil, err
	}
	cfg, err := req.AdditionalConfig()
	if err != nil {
		return nil, err
	}

	base := map[string]interface{}{
		"node_type": KindDynamips.NodeType(),
		"name":      req.AppName,
	}
	props := map[string]interface{}{
		"image":    req.Attr(AttrImage),
		"ram":      ram,
		"platform": req.Attr(AttrPlatform),
	}
	for i := 1; i <= DynamipsSlots; i++ {
		if v := req.Attr(fmt.Sprintf("Slot %d", i)); v != "" {
			props[fmt.Sprintf("slot%d", i)] = v
		}
	}
	return &NodeSpec{
		kind:    KindDynamips,
		AppName: req.AppName,
		Server:  req.Server(),
		payload: merge(base, props, cfg),
	}, nil
}

// merge lays user config over base, and user "properties" over props.
func merge(base, props, user map[string]interface{}) map[string]interface{} {
	out := copyMap(base)
	for k, v := range user {
		if k == "properties" {
			continue
		}
		out[k] = v
	}
	merged := copyMap(props)
	if up, ok := user["properties"].(map[string]interface{}); ok {
		for k, v := range up {
			merged[k] = v
		}
	}
	out["properties"] = merged
	return out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
