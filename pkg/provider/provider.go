// Package provider exposes the operations a sandbox orchestrator drives:
// discovery, deploy, delete, power, infrastructure preparation and cleanup,
// and instance details. Each call names its reservation explicitly; the
// provider keeps no per-reservation state beyond the deployment records in
// its state store.
package provider

import (
	"context"
	"time"

	"github.com/newtron-network/gns3cp/pkg/audit"
	"github.com/newtron-network/gns3cp/pkg/deploy"
	"github.com/newtron-network/gns3cp/pkg/device"
	"github.com/newtron-network/gns3cp/pkg/discovery"
	"github.com/newtron-network/gns3cp/pkg/lifecycle"
	"github.com/newtron-network/gns3cp/pkg/metrics"
	"github.com/newtron-network/gns3cp/pkg/state"
	"github.com/newtron-network/gns3cp/pkg/topology"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// Live status values reported by power operations.
const (
	LiveOnline  = "Online"
	LiveOffline = "Offline"
)

// API is everything the provider needs from a GNS3 client. *gns3.Client
// satisfies it.
type API interface {
	topology.API
	lifecycle.API
	discovery.API
}

// Provider runs host-facing operations against one GNS3 server.
type Provider struct {
	api     API
	topo    *topology.Helper
	deploy  *deploy.Orchestrator
	store   state.Store
	audit   audit.Logger
	address string
}

// New returns a provider. address is the server host, used for discovery
// and as the console host of nodes that do not report one.
func New(api API, cfg topology.Config, store state.Store, address string) *Provider {
	topo := topology.NewHelper(api, cfg)
	return &Provider{
		api:     api,
		topo:    topo,
		deploy:  deploy.New(topo, api, address),
		store:   store,
		audit:   audit.Discard,
		address: address,
	}
}

// SetAuditLogger records every operation to l from now on.
func (p *Provider) SetAuditLogger(l audit.Logger) {
	p.audit = l
}

// AuditLog returns the recorded operations matching f.
func (p *Provider) AuditLog(f audit.Filter) ([]*audit.Event, error) {
	return p.audit.Query(f)
}

// Topology returns the helper the provider drives.
func (p *Provider) Topology() *topology.Helper {
	return p.topo
}

// observe counts a finished operation and writes it to the audit log.
func (p *Provider) observe(ev *audit.Event, start time.Time, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	metrics.Operations.WithLabelValues(ev.Operation, result).Inc()

	if lerr := p.audit.Log(ev.WithResult(err).WithDuration(time.Since(start))); lerr != nil {
		util.WithOperation(ev.Operation).WithError(lerr).Warn("failed to write audit event")
	}
}

// project resolves the reservation's project, failing when it does not
// exist.
func (p *Provider) project(ctx context.Context, reservation string) (string, error) {
	id, err := p.topo.ResolveProject(ctx, reservation)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", util.NewNotFoundError("project", reservation)
	}
	return id, nil
}

// Discover reads the server version for inventory.
func (p *Provider) Discover(ctx context.Context) (inv *discovery.Inventory, err error) {
	defer func(start time.Time) { p.observe(audit.NewEvent("discover", ""), start, err) }(time.Now())
	return discovery.Discover(ctx, p.api, p.address)
}

// Deploy validates the request and deploys the app. The outcome is returned
// even when err is non-nil, so callers can report the compensation state.
// A successful deployment is recorded in the state store.
func (p *Provider) Deploy(ctx context.Context, req *DeployRequest, cancelled deploy.CancellationProbe) (out *deploy.Outcome, err error) {
	defer func(start time.Time) {
		ev := audit.NewEvent("deploy", req.Reservation)
		if out != nil {
			ev.WithOutcome(out.Kind.String())
			if out.Result != nil {
				ev.WithNode(out.Result.NodeID)
			}
		}
		p.observe(ev, start, err)
	}(time.Now())
	if err := req.Validate(); err != nil {
		return nil, err
	}

	out = p.deploy.Deploy(ctx, deploy.Deployment{
		Reservation: req.Reservation,
		Request:     &req.App,
		Subnets:     req.Subnets,
		Cancelled:   cancelled,
	})
	if out.Kind == deploy.Succeeded {
		p.record(ctx, req, out.Result)
	}
	return out, out.Err()
}

func (p *Provider) record(ctx context.Context, req *DeployRequest, res *deploy.Result) {
	kind, _ := device.ParseKind(req.App.DeploymentPath)
	r := &state.Record{
		Reservation: req.Reservation,
		ProjectID:   res.ProjectID,
		NodeID:      res.NodeID,
		NodeName:    res.NodeName,
		AppName:     req.App.AppName,
		Kind:        kind.String(),
		Address:     res.Address,
		Status:      state.StatusRunning,
	}
	if err := p.store.Save(ctx, r); err != nil {
		util.WithReservation(req.Reservation).WithError(err).Warn("failed to record deployment")
	}
}

// DeleteInstance deletes a deployed node and its record.
func (p *Provider) DeleteInstance(ctx context.Context, reservation, nodeID string) (msg string, err error) {
	defer func(start time.Time) { p.observe(audit.NewEvent("delete_instance", reservation).WithNode(nodeID), start, err) }(time.Now())
	pid, err := p.project(ctx, reservation)
	if err != nil {
		return "", err
	}
	node, err := p.topo.GetNode(ctx, pid, nodeID)
	if err != nil {
		return "", err
	}
	if err := p.topo.DeleteNode(ctx, pid, node.NodeID); err != nil {
		return "", err
	}
	if err := p.store.Delete(ctx, reservation, node.NodeID); err != nil {
		util.WithReservation(reservation).WithError(err).Warn("failed to remove deployment record")
	}
	util.WithNode(pid, node.NodeID).Info("instance deleted")
	return "Successfully terminated instance " + node.Name, nil
}

// PowerResult reports a power operation.
type PowerResult struct {
	NodeID     string `json:"node_id" yaml:"node_id"`
	NodeName   string `json:"node_name" yaml:"node_name"`
	LiveStatus string `json:"live_status" yaml:"live_status"`
	Message    string `json:"message" yaml:"message"`
}

// PowerOn starts a deployed node.
func (p *Provider) PowerOn(ctx context.Context, reservation, nodeID string) (res *PowerResult, err error) {
	defer func(start time.Time) { p.observe(audit.NewEvent("power_on", reservation).WithNode(nodeID), start, err) }(time.Now())
	return p.power(ctx, reservation, nodeID, true)
}

// PowerOff stops a deployed node.
func (p *Provider) PowerOff(ctx context.Context, reservation, nodeID string) (res *PowerResult, err error) {
	defer func(start time.Time) { p.observe(audit.NewEvent("power_off", reservation).WithNode(nodeID), start, err) }(time.Now())
	return p.power(ctx, reservation, nodeID, false)
}

func (p *Provider) power(ctx context.Context, reservation, nodeID string, on bool) (*PowerResult, error) {
	pid, err := p.project(ctx, reservation)
	if err != nil {
		return nil, err
	}
	node, err := p.topo.GetNode(ctx, pid, nodeID)
	if err != nil {
		return nil, err
	}

	res := &PowerResult{NodeID: node.NodeID, NodeName: node.Name}
	status := state.StatusRunning
	if on {
		if err := lifecycle.Start(ctx, p.api, pid, node.NodeID); err != nil {
			return nil, err
		}
		res.LiveStatus, res.Message = LiveOnline, "VM started successfully"
	} else {
		if err := lifecycle.Stop(ctx, p.api, pid, node.NodeID); err != nil {
			return nil, err
		}
		status = state.StatusStopped
		res.LiveStatus, res.Message = LiveOffline, "VM stopped successfully"
	}

	if err := state.UpdateStatus(ctx, p.store, reservation, node.NodeID, status); err != nil {
		util.WithReservation(reservation).WithError(err).Warn("failed to update deployment record")
	}
	return res, nil
}

// Status lists the recorded deployments of a reservation, or of all
// reservations when reservation is empty.
func (p *Provider) Status(ctx context.Context, reservation string) ([]*state.Record, error) {
	return p.store.List(ctx, reservation)
}
