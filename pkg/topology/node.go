package topology

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/newtron-network/gns3cp/pkg/device"
	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/metrics"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// Node placement on the canvas.
const (
	nodeX = 10
	nodeY = 10
)

// CreateSwitch instantiates the built-in ethernet switch and names it.
func (h *Helper) CreateSwitch(ctx context.Context, projectID, name string) (*gns3.Node, error) {
	return h.CreateFromTemplate(ctx, projectID, name, h.cfg.SwitchTemplateID, map[string]interface{}{
		"compute_id": h.cfg.DefaultCompute,
	})
}

// CreateFromTemplate instantiates templateID as a node called name and
// renames it, since GNS3 applies its own naming scheme on instantiation.
// The returned node reflects the rename.
func (h *Helper) CreateFromTemplate(ctx context.Context, projectID, name, templateID string, data map[string]interface{}) (*gns3.Node, error) {
	payload := map[string]interface{}{
		"name": name,
		"x":    nodeX,
		"y":    nodeY,
	}
	for k, v := range data {
		payload[k] = v
	}

	util.WithFields(map[string]interface{}{
		"project":  projectID,
		"template": templateID,
		"name":     name,
	}).Debug("instantiating template")

	n, err := h.api.CreateNodeFromTemplate(ctx, projectID, templateID, payload)
	if err != nil {
		return nil, fmt.Errorf("topology: instantiate template %s as %s: %w", templateID, name, err)
	}
	renamed, err := h.RenameNode(ctx, projectID, n.NodeID, name)
	if err != nil {
		// The caller never sees this node, so it cannot be left behind.
		if derr := h.DeleteNode(context.WithoutCancel(ctx), projectID, n.NodeID); derr != nil {
			util.WithNode(projectID, n.NodeID).WithError(derr).Error("failed to delete node after failed rename")
		}
		return nil, err
	}
	return renamed, nil
}

// CreateNodeFromTemplate clones the named template as a node. When
// interfaces > 0 the template is duplicated first, the duplicate is patched
// with the adapter count and data, instantiated, and then deleted whether or
// not instantiation succeeded. Failing to delete the duplicate is logged
// only. Otherwise data goes into the instantiation payload.
func (h *Helper) CreateNodeFromTemplate(ctx context.Context, projectID, name, templateID string, interfaces int, data map[string]interface{}) (*gns3.Node, error) {
	if interfaces <= 0 {
		return h.CreateFromTemplate(ctx, projectID, name, templateID, data)
	}

	dup, err := h.api.DuplicateTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("topology: duplicate template %s for %s: %w", templateID, name, err)
	}
	if dup == nil || dup.TemplateID == "" {
		return nil, fmt.Errorf("topology: duplicate template %s for %s: no template returned", templateID, name)
	}
	defer func() {
		// Runs even when the caller has gone away.
		if derr := h.api.DeleteTemplate(context.WithoutCancel(ctx), dup.TemplateID); derr != nil {
			util.WithField("template", dup.TemplateID).WithError(derr).Warn("failed to delete duplicated template")
		}
	}()

	patch := map[string]interface{}{
		"adapters": interfaces,
		"name":     fmt.Sprintf("%s-%s", name, lastN(projectID, 4)),
	}
	for k, v := range data {
		patch[k] = v
	}
	if err := h.api.UpdateTemplate(ctx, dup.TemplateID, patch); err != nil {
		return nil, fmt.Errorf("topology: patch duplicated template %s: %w", dup.TemplateID, err)
	}

	return h.CreateFromTemplate(ctx, projectID, name, dup.TemplateID, nil)
}

// CreateNode creates a node from an explicit payload, resolving the compute
// the node spec names unless the payload already pins one.
func (h *Helper) CreateNode(ctx context.Context, projectID string, spec *device.NodeSpec) (*gns3.Node, error) {
	computeID := ""
	if !spec.ComputeOverridden() {
		id, err := h.ComputeID(ctx, spec.Server)
		if err != nil {
			return nil, err
		}
		computeID = id
	}

	n, err := h.api.CreateNode(ctx, projectID, spec.Payload(computeID))
	if err != nil {
		return nil, fmt.Errorf("topology: create %s node %s: %w", spec.Kind(), spec.AppName, err)
	}
	util.WithNode(projectID, n.NodeID).Debugf("%s node %s created", spec.Kind(), spec.AppName)
	return n, nil
}

// RenameNode sets the node name. Callers must use the ID of the returned
// node from here on.
func (h *Helper) RenameNode(ctx context.Context, projectID, nodeID, name string) (*gns3.Node, error) {
	n, err := h.api.UpdateNode(ctx, projectID, nodeID, map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("topology: rename node %s to %s: %w", nodeID, name, err)
	}
	if n.NodeID == "" {
		n.NodeID = nodeID
	}
	return n, nil
}

// GetNode reads one node.
func (h *Helper) GetNode(ctx context.Context, projectID, nodeID string) (*gns3.Node, error) {
	n, err := h.api.GetNode(ctx, projectID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("topology: get node %s: %w", nodeID, err)
	}
	return n, nil
}

// DeleteNode removes the node and, server side, its links.
func (h *Helper) DeleteNode(ctx context.Context, projectID, nodeID string) error {
	if err := h.api.DeleteNode(ctx, projectID, nodeID); err != nil {
		return fmt.Errorf("topology: delete node %s: %w", nodeID, err)
	}
	return nil
}

// ComputeID resolves a compute by ID or name. An empty name selects the
// default compute.
func (h *Helper) ComputeID(ctx context.Context, name string) (string, error) {
	if name == "" {
		return h.cfg.DefaultCompute, nil
	}
	return h.lookup(ctx, "compute", name, func() (string, error) {
		computes, err := h.api.ListComputes(ctx)
		if err != nil {
			return "", fmt.Errorf("topology: list computes: %w", err)
		}
		for _, c := range computes {
			if c.ComputeID == name || c.Name == name {
				return c.ComputeID, nil
			}
		}
		return "", util.NewNotFoundError("compute", name)
	})
}

// TemplateID resolves a template by name.
func (h *Helper) TemplateID(ctx context.Context, name string) (string, error) {
	return h.lookup(ctx, "template", name, func() (string, error) {
		templates, err := h.api.ListTemplates(ctx)
		if err != nil {
			return "", fmt.Errorf("topology: list templates: %w", err)
		}
		for _, t := range templates {
			if t.Name == name {
				return t.TemplateID, nil
			}
		}
		return "", util.NewNotFoundError("template", name)
	})
}

// ForgetTemplate drops a cached template lookup, e.g. after the server
// reported the cached ID as missing.
func (h *Helper) ForgetTemplate(name string) {
	if h.names != nil {
		h.names.Delete("template/" + name)
	}
}

func (h *Helper) lookup(ctx context.Context, kind, name string, fetch func() (string, error)) (string, error) {
	key := kind + "/" + name
	if h.names != nil {
		if v, ok := h.names.Get(key); ok {
			metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
			return v.(string), nil
		}
		metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
	}
	id, err := fetch()
	if err != nil {
		return "", err
	}
	if h.names != nil {
		h.names.Set(key, id, cache.DefaultExpiration)
	}
	return id, nil
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
