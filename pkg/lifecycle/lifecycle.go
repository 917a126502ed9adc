// Package lifecycle starts and stops nodes. Each operation is one request;
// failures are returned as the server reported them.
package lifecycle

import (
	"context"

	"github.com/newtron-network/gns3cp/pkg/util"
)

// API is the part of the GNS3 client lifecycle operations use.
type API interface {
	StartNode(ctx context.Context, projectID, nodeID string) error
	StopNode(ctx context.Context, projectID, nodeID string) error
}

// Start powers the node on.
func Start(ctx context.Context, api API, projectID, nodeID string) error {
	util.WithNode(projectID, nodeID).Debug("starting node")
	return api.StartNode(ctx, projectID, nodeID)
}

// Stop powers the node off.
func Stop(ctx context.Context, api API, projectID, nodeID string) error {
	util.WithNode(projectID, nodeID).Debug("stopping node")
	return api.StopNode(ctx, projectID, nodeID)
}
