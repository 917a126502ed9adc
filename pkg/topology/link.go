package topology

import (
	"context"
	"fmt"

	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/metrics"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// LinksForNode returns the project links with an endpoint on nodeID.
func (h *Helper) LinksForNode(ctx context.Context, projectID, nodeID string) ([]gns3.Link, error) {
	links, err := h.api.ListLinks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("topology: list links of project %s: %w", projectID, err)
	}
	var out []gns3.Link
	for _, l := range links {
		if l.Touches(nodeID) {
			out = append(out, l)
		}
	}
	return out, nil
}

// AllocateSwitchPort returns the first port of sw, in the switch's own port
// order, that no link uses. ok is false when every port is taken.
//
// The result is only a candidate: another deployment may claim the same
// port before the link is created. Connect handles that race.
func (h *Helper) AllocateSwitchPort(ctx context.Context, projectID string, sw *gns3.Node) (ep gns3.LinkEndpoint, ok bool, err error) {
	links, err := h.LinksForNode(ctx, projectID, sw.NodeID)
	if err != nil {
		return gns3.LinkEndpoint{}, false, err
	}

	used := make(map[[2]int]bool)
	for _, l := range links {
		for _, e := range l.Nodes {
			if e.NodeID == sw.NodeID {
				used[[2]int{e.AdapterNumber, e.PortNumber}] = true
			}
		}
	}

	for _, p := range sw.Ports {
		if !used[[2]int{p.AdapterNumber, p.PortNumber}] {
			return gns3.LinkEndpoint{
				NodeID:        sw.NodeID,
				AdapterNumber: p.AdapterNumber,
				PortNumber:    p.PortNumber,
			}, true, nil
		}
	}
	return gns3.LinkEndpoint{}, false, nil
}

// Connect links the node endpoint to a free port of sw.
//
// Each attempt allocates a port and creates the link. A 409 means either
// the switch port was taken by a concurrent deployment, or the node port is
// already linked. In the latter case, if the node port now sits on sw the
// intent is satisfied and Connect succeeds; otherwise it tries again. Any
// other error aborts. After ConnectRetries attempts, or as soon as the
// switch has no free port, a *util.LinkAllocationError is returned.
func (h *Helper) Connect(ctx context.Context, projectID string, sw *gns3.Node, node gns3.LinkEndpoint) error {
	log := util.WithNode(projectID, node.NodeID).WithField("switch", sw.Name)
	limit := h.cfg.ConnectRetries

	var lastErr error
	for attempt := 1; attempt <= limit; attempt++ {
		swEP, ok, err := h.AllocateSwitchPort(ctx, projectID, sw)
		if err != nil {
			return err
		}
		if !ok {
			return &util.LinkAllocationError{
				Switch:   sw.Name,
				Node:     node.NodeID,
				Port:     node.PortNumber,
				Adapter:  node.AdapterNumber,
				Attempts: attempt,
				Reason:   "no free switch port",
			}
		}

		_, err = h.api.CreateLink(ctx, projectID, gns3.Link{
			CaptureComputeID: h.cfg.DefaultCompute,
			Nodes:            []gns3.LinkEndpoint{swEP, node},
		})
		if err == nil {
			metrics.LinkAttempts.WithLabelValues(metrics.ResultOK).Inc()
			log.Debugf("linked %d/%d to switch port %d/%d",
				node.AdapterNumber, node.PortNumber, swEP.AdapterNumber, swEP.PortNumber)
			return nil
		}
		if !gns3.IsConflict(err) {
			metrics.LinkAttempts.WithLabelValues(metrics.ResultError).Inc()
			return fmt.Errorf("topology: link node %s to switch %s: %w", node.NodeID, sw.Name, err)
		}
		metrics.LinkAttempts.WithLabelValues(metrics.ResultConflict).Inc()

		linked, cerr := h.CheckExistingLink(ctx, projectID, node, sw.NodeID)
		if cerr != nil {
			return cerr
		}
		if linked {
			log.Debug("link already present after conflict")
			return nil
		}
		log.Warnf("conflict on switch port %d/%d (attempt %d/%d), retrying",
			swEP.AdapterNumber, swEP.PortNumber, attempt, limit)
		lastErr = err
	}

	return &util.LinkAllocationError{
		Switch:   sw.Name,
		Node:     node.NodeID,
		Port:     node.PortNumber,
		Adapter:  node.AdapterNumber,
		Attempts: limit,
		Reason:   lastErr.Error(),
	}
}

// CheckExistingLink reports whether the node endpoint is linked to
// switchID, whichever side of the link each is stored on.
func (h *Helper) CheckExistingLink(ctx context.Context, projectID string, node gns3.LinkEndpoint, switchID string) (bool, error) {
	links, err := h.LinksForNode(ctx, projectID, node.NodeID)
	if err != nil {
		return false, err
	}
	for i := range links {
		peer, ok := links[i].Peer(node.NodeID, node.AdapterNumber, node.PortNumber)
		if ok && peer.NodeID == switchID {
			return true, nil
		}
	}
	return false, nil
}
