package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/gns3cp/pkg/audit"
	"github.com/newtron-network/gns3cp/pkg/deploy"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// maxParallel bounds concurrent requests issued by one provider call.
const maxParallel = 8

// ActionCleanup is the action type of a cleanup result.
const ActionCleanup = "cleanupNetwork"

// ActionResult acknowledges one host action.
type ActionResult struct {
	ActionID         string `json:"action_id" yaml:"action_id"`
	Type             string `json:"type" yaml:"type"`
	Success          bool   `json:"success" yaml:"success"`
	InfoMessage      string `json:"info_message" yaml:"info_message"`
	ErrorMessage     string `json:"error_message" yaml:"error_message"`
	UpdatedInterface string `json:"updated_interface,omitempty" yaml:"updated_interface,omitempty"`
}

// SubnetInfo reports the switch created for one subnet. SubnetID is what
// deploy requests pass back as deploy.SubnetRequest.SubnetID.
type SubnetInfo struct {
	ActionID    string `json:"action_id" yaml:"action_id"`
	SubnetID    string `json:"subnet_id" yaml:"subnet_id"`
	Name        string `json:"name" yaml:"name"`
	InfoMessage string `json:"info_message" yaml:"info_message"`
}

// InfraResult is returned by PrepareInfra.
type InfraResult struct {
	ActionID    string       `json:"action_id" yaml:"action_id"`
	ProjectID   string       `json:"project_id" yaml:"project_id"`
	InfoMessage string       `json:"info_message" yaml:"info_message"`
	Subnets     []SubnetInfo `json:"subnets" yaml:"subnets"`
	AccessKey   *AccessKey   `json:"access_key" yaml:"access_key"`
}

// PrepareInfra makes sure the reservation's project exists and creates one
// switch per requested subnet, in parallel.
func (p *Provider) PrepareInfra(ctx context.Context, req *InfraRequest) (res *InfraResult, err error) {
	defer func(start time.Time) { p.observe(audit.NewEvent("prepare_infra", req.Reservation), start, err) }(time.Now())
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := util.WithReservation(req.Reservation)
	log.Info("preparing sandbox connectivity")

	pid, err := p.topo.EnsureProject(ctx, req.Reservation)
	if err != nil {
		return nil, err
	}

	subnets := make([]SubnetInfo, len(req.Subnets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, s := range req.Subnets {
		i, s := i, s
		g.Go(func() error {
			sw, err := p.topo.CreateSwitch(gctx, pid, s.SwitchName())
			if err != nil {
				return fmt.Errorf("provider: subnet %s: %w", s.SwitchName(), err)
			}
			subnets[i] = SubnetInfo{
				ActionID:    s.ActionID,
				SubnetID:    sw.NodeID,
				Name:        sw.Name,
				InfoMessage: "Success",
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	key, err := GenerateAccessKey(req.Reservation)
	if err != nil {
		return nil, err
	}
	key.ActionID = req.KeysActionID

	log.WithField("subnets", len(subnets)).Info("sandbox connectivity prepared")
	return &InfraResult{
		ActionID:    req.ActionID,
		ProjectID:   pid,
		InfoMessage: "PrepareConnectivity finished successfully",
		Subnets:     subnets,
		AccessKey:   key,
	}, nil
}

// CleanupInfra deletes the reservation's project and verifies it no longer
// resolves. Verification decides the result: a failed delete of a project
// that is gone anyway succeeds, and a project that survives fails with
// *util.TeardownError whatever the delete returned. A reservation without a
// project is already clean.
func (p *Provider) CleanupInfra(ctx context.Context, reservation, actionID string) (res *ActionResult, err error) {
	defer func(start time.Time) { p.observe(audit.NewEvent("cleanup_infra", reservation), start, err) }(time.Now())
	log := util.WithReservation(reservation)

	pid, err := p.topo.ResolveProject(ctx, reservation)
	if err != nil {
		return nil, err
	}
	if pid != "" {
		if derr := p.topo.DeleteProject(ctx, pid); derr != nil {
			log.WithError(derr).Warn("project delete failed, verifying")
		}
		still, err := p.topo.ResolveProject(ctx, reservation)
		if err != nil {
			return nil, err
		}
		if still != "" {
			return nil, &util.TeardownError{Reservation: reservation, ProjectID: still}
		}
	}

	if err := p.store.DeleteReservation(ctx, reservation); err != nil {
		log.WithError(err).Warn("failed to remove deployment records")
	}
	log.Info("sandbox infrastructure cleaned up")
	return &ActionResult{ActionID: actionID, Type: ActionCleanup, Success: true}, nil
}

// ApplyConnectivityChanges acknowledges every action. Subnet membership is
// carried by the switch links made at deploy time, so there is nothing to
// change on the server.
func (p *Provider) ApplyConnectivityChanges(req *ConnectivityRequest) []ActionResult {
	util.WithOperation("apply_connectivity").WithField("actions", len(req.Actions)).Info("acknowledging connectivity changes")
	out := make([]ActionResult, 0, len(req.Actions))
	for _, a := range req.Actions {
		out = append(out, ActionResult{
			ActionID:         a.ActionID,
			Type:             a.Type,
			Success:          true,
			UpdatedInterface: "None",
		})
	}
	p.observe(audit.NewEvent("apply_connectivity", ""), time.Now(), nil)
	return out
}

// VMDetails refreshes the details of several nodes in parallel. The result
// is in request order.
func (p *Provider) VMDetails(ctx context.Context, reservation string, reqs []DetailsRequest) (out []*deploy.Details, err error) {
	defer func(start time.Time) { p.observe(audit.NewEvent("vm_details", reservation), start, err) }(time.Now())
	if err := validateDetails(reqs); err != nil {
		return nil, err
	}
	pid, err := p.project(ctx, reservation)
	if err != nil {
		return nil, err
	}

	out = make([]*deploy.Details, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, r := range reqs {
		i, r := i, r
		g.Go(func() error {
			node, err := p.topo.GetNode(gctx, pid, r.NodeID)
			if err != nil {
				return err
			}
			d, err := deploy.VMDetails(gctx, p.topo, pid, reservation, r.AppName, node)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
