package topology

import (
	"context"
	"fmt"

	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// Cloud placement on the canvas.
const (
	cloudX = -150
	cloudY = -150
)

// ResolveProject returns the ID of the project named after the reservation,
// or "" if there is none.
func (h *Helper) ResolveProject(ctx context.Context, reservation string) (string, error) {
	projects, err := h.api.ListProjects(ctx)
	if err != nil {
		return "", fmt.Errorf("topology: list projects: %w", err)
	}
	for _, p := range projects {
		if p.Name == reservation {
			return p.ProjectID, nil
		}
	}
	return "", nil
}

// CreateProject creates the reservation's project with its uplink cloud and
// a management switch named after the reservation, and links the two. It
// does not check for an existing project; see EnsureProject. When any step
// after project creation fails the project is deleted again.
func (h *Helper) CreateProject(ctx context.Context, reservation string) (string, error) {
	log := util.WithReservation(reservation)

	p, err := h.api.CreateProject(ctx, reservation)
	if err != nil {
		return "", fmt.Errorf("topology: create project %s: %w", reservation, err)
	}
	if p == nil || p.ProjectID == "" {
		return "", fmt.Errorf("topology: create project %s: %w", reservation, util.ErrContainerCreationFailed)
	}
	log.WithField("project", p.ProjectID).Debug("project created")

	if err := h.populateProject(ctx, p.ProjectID, reservation); err != nil {
		// A half-built project would be reused by the next EnsureProject.
		if derr := h.DeleteProject(context.WithoutCancel(ctx), p.ProjectID); derr != nil {
			log.WithField("project", p.ProjectID).WithError(derr).Error("failed to delete partially created project")
		}
		return "", err
	}

	log.WithField("project", p.ProjectID).Info("project ready")
	return p.ProjectID, nil
}

// populateProject adds the cloud and management switch to a new project and
// links them.
func (h *Helper) populateProject(ctx context.Context, projectID, reservation string) error {
	cloud, err := h.api.CreateNodeFromTemplate(ctx, projectID, h.cfg.CloudTemplateID, map[string]interface{}{
		"compute_id": h.cfg.DefaultCompute,
		"x":          cloudX,
		"y":          cloudY,
	})
	if err != nil {
		return fmt.Errorf("topology: create cloud in project %s: %w", projectID, err)
	}
	if len(cloud.Ports) == 0 {
		return fmt.Errorf("topology: cloud %s in project %s has no ports", cloud.NodeID, projectID)
	}

	sw, err := h.CreateSwitch(ctx, projectID, reservation)
	if err != nil {
		return err
	}

	uplink := gns3.LinkEndpoint{
		NodeID:        cloud.NodeID,
		AdapterNumber: cloud.Ports[0].AdapterNumber,
		PortNumber:    cloud.Ports[0].PortNumber,
	}
	return h.Connect(ctx, projectID, sw, uplink)
}

// EnsureProject resolves the reservation's project, creating it when
// absent. A 409 from a concurrent creator is resolved by looking the project
// up again.
func (h *Helper) EnsureProject(ctx context.Context, reservation string) (string, error) {
	id, err := h.ResolveProject(ctx, reservation)
	if err != nil || id != "" {
		return id, err
	}
	id, err = h.CreateProject(ctx, reservation)
	if err == nil || !gns3.IsConflict(err) {
		return id, err
	}
	util.WithReservation(reservation).Warn("project created concurrently, resolving again")
	id, rerr := h.ResolveProject(ctx, reservation)
	if rerr != nil {
		return "", rerr
	}
	if id == "" {
		return "", err
	}
	return id, nil
}

// DeleteProject deletes the project. It does not verify removal.
func (h *Helper) DeleteProject(ctx context.Context, projectID string) error {
	if err := h.api.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("topology: delete project %s: %w", projectID, err)
	}
	return nil
}

// NodeByName returns the first node in the project with the given name, or
// nil.
func (h *Helper) NodeByName(ctx context.Context, projectID, name string) (*gns3.Node, error) {
	nodes, err := h.api.ListNodes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("topology: list nodes of project %s: %w", projectID, err)
	}
	for i := range nodes {
		if nodes[i].Name == name {
			return &nodes[i], nil
		}
	}
	return nil, nil
}

// ManagementSwitch returns the project's management switch, which carries
// the reservation ID as its name.
func (h *Helper) ManagementSwitch(ctx context.Context, projectID, reservation string) (*gns3.Node, error) {
	sw, err := h.NodeByName(ctx, projectID, reservation)
	if err != nil {
		return nil, err
	}
	if sw == nil {
		return nil, util.NewNotFoundError("switch", reservation)
	}
	return sw, nil
}
