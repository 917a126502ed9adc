// Package deploy realizes one device in a reservation's GNS3 project: it
// creates the node, names it, wires it to the management switch and the
// requested subnet switches, and starts it. A node is never left behind
// half-wired: any failure after creation deletes it before the error is
// returned.
package deploy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/newtron-network/gns3cp/pkg/device"
	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/lifecycle"
	"github.com/newtron-network/gns3cp/pkg/metrics"
	"github.com/newtron-network/gns3cp/pkg/topology"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// SubnetRequest asks for one node port on the switch SubnetID (as returned
// by infrastructure preparation). VNICName optionally selects the port by
// name, short name or index.
type SubnetRequest struct {
	ActionID string `json:"action_id" yaml:"action_id"`
	SubnetID string `json:"subnet_id" yaml:"subnet_id" validate:"required"`
	VNICName string `json:"vnic_name,omitempty" yaml:"vnic_name,omitempty"`
}

// CancellationProbe reports whether the caller gave up on the deployment.
// It is consulted once, after the node is started.
type CancellationProbe func() bool

// Deployment is the input to Deploy.
type Deployment struct {
	Reservation string
	Request     *device.Request
	Subnets     []SubnetRequest
	Cancelled   CancellationProbe
}

// Orchestrator runs deployments against one GNS3 server.
type Orchestrator struct {
	topo  *topology.Helper
	power lifecycle.API
	host  string
}

// New returns an orchestrator. serverHost is reported as the console host
// when a node does not carry one.
func New(topo *topology.Helper, power lifecycle.API, serverHost string) *Orchestrator {
	return &Orchestrator{topo: topo, power: power, host: serverHost}
}

// NodeName is the display name given to a deployed node: the app name plus
// the last four characters of the node ID.
func NodeName(appName, nodeID string) string {
	suffix := nodeID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return appName + "-" + suffix
}

// Deploy runs the deployment and reports how it ended. The returned
// outcome is never nil; use Outcome.Err for the error to surface.
func (o *Orchestrator) Deploy(ctx context.Context, d Deployment) *Outcome {
	out := o.deploy(ctx, d)
	metrics.Deployments.WithLabelValues(out.Kind.String()).Inc()
	return out
}

func (o *Orchestrator) deploy(ctx context.Context, d Deployment) *Outcome {
	req := d.Request
	log := util.WithReservation(d.Reservation).WithField("app", req.AppName)
	log.Info("starting deployment")

	spec, err := device.Resolve(req)
	if err != nil {
		return &Outcome{Kind: Failed, State: StatePending, Cause: err}
	}

	projectID, err := o.topo.EnsureProject(ctx, d.Reservation)
	if err != nil {
		return &Outcome{Kind: Failed, State: StatePending, Cause: err}
	}

	node, err := o.create(ctx, projectID, spec, len(d.Subnets))
	if err != nil {
		out := &Outcome{Kind: Failed, State: StatePending, Cause: err}
		if node != nil && node.NodeID != "" {
			log.WithError(err).Warn("node creation reported an error, deleting node")
			if derr := o.topo.DeleteNode(context.WithoutCancel(ctx), projectID, node.NodeID); derr != nil {
				out.CleanupErr = derr
			} else {
				out.Kind = Compensated
			}
		}
		return out
	}
	log = log.WithField("node", node.NodeID)
	log.Debug("node created")

	// From here on the node exists and must be removed on any failure.
	state := StateCreated
	nodeID := node.NodeID

	fail := func(cause error) *Outcome {
		log.WithError(cause).Warnf("deployment failed at %s, deleting node", state)
		if derr := o.topo.DeleteNode(context.WithoutCancel(ctx), projectID, nodeID); derr != nil {
			log.WithError(derr).Error("failed to delete node after failed deployment")
			return &Outcome{Kind: Failed, State: state, Cause: cause, CleanupErr: derr}
		}
		return &Outcome{Kind: Compensated, State: state, Cause: cause}
	}

	name := NodeName(req.AppName, nodeID)
	node, err = o.topo.RenameNode(ctx, projectID, nodeID, name)
	if err != nil {
		return fail(err)
	}
	nodeID = node.NodeID
	state = StateRenamed

	ports := append([]gns3.Port(nil), node.Ports...)
	indexOf := make(map[gns3.Port]int, len(ports))
	for i, p := range ports {
		indexOf[p] = i
	}

	if req.ConnectManagement() {
		if len(ports) == 0 {
			return fail(fmt.Errorf("deploy: node %s has no ports for management", name))
		}
		mgmt, err := o.topo.ManagementSwitch(ctx, projectID, d.Reservation)
		if err != nil {
			return fail(err)
		}
		if err := o.topo.Connect(ctx, projectID, mgmt, endpointOf(nodeID, ports[0])); err != nil {
			return fail(err)
		}
		ports = ports[1:]
		state = StateManagementWired
	}

	var subnets []SubnetResult
	for _, sr := range d.Subnets {
		i := pickPort(ports, indexOf, sr.VNICName)
		if i < 0 {
			return fail(fmt.Errorf("deploy: node %s has no free port for subnet %s", name, sr.SubnetID))
		}
		port := ports[i]

		sw, err := o.topo.GetNode(ctx, projectID, sr.SubnetID)
		if err != nil {
			return fail(err)
		}
		if err := o.topo.Connect(ctx, projectID, sw, endpointOf(nodeID, port)); err != nil {
			return fail(err)
		}
		subnets = append(subnets, SubnetResult{
			ActionID:  sr.ActionID,
			SubnetID:  sr.SubnetID,
			Interface: interfaceJSON(port.Name),
		})
		ports = append(ports[:i], ports[i+1:]...)
	}
	state = StateSubnetsWired

	if err := lifecycle.Start(ctx, o.power, projectID, nodeID); err != nil {
		return fail(err)
	}
	state = StateStarted

	result := &Result{
		ActionID:  req.ActionID,
		ProjectID: projectID,
		NodeID:    nodeID,
		NodeName:  name,
		Address:   o.address(node),
		Attributes: []Attribute{
			{Name: device.AttrUser, Value: req.User()},
			{Name: device.AttrPassword, Value: req.Password()},
		},
		Subnets: subnets,
	}
	if details, err := VMDetails(ctx, o.topo, projectID, d.Reservation, name, node); err != nil {
		log.WithError(err).Warn("failed to read instance details")
	} else {
		result.Details = details
	}

	if d.Cancelled != nil && d.Cancelled() {
		log.Info("deployment cancelled, deleting node")
		if err := o.topo.DeleteNode(context.WithoutCancel(ctx), projectID, nodeID); err != nil {
			return &Outcome{Kind: Cancelled, State: state, Result: result, CleanupErr: err}
		}
		return &Outcome{Kind: Cancelled, State: StateDeleted, Result: result}
	}

	log.Info("deployment completed")
	return &Outcome{Kind: Succeeded, State: StateDone, Result: result}
}

func (o *Orchestrator) create(ctx context.Context, projectID string, spec device.Spec, subnets int) (*gns3.Node, error) {
	switch s := spec.(type) {
	case *device.TemplateSpec:
		tid, err := o.topo.TemplateID(ctx, s.TemplateName)
		if err != nil {
			return nil, err
		}
		n, err := o.topo.CreateNodeFromTemplate(ctx, projectID, s.AppName, tid, s.InterfaceCount(subnets), s.Config)
		if gns3.IsNotFound(err) {
			o.topo.ForgetTemplate(s.TemplateName)
		}
		return n, err
	case *device.NodeSpec:
		return o.topo.CreateNode(ctx, projectID, s)
	}
	return nil, fmt.Errorf("deploy: unsupported device spec %T", spec)
}

// address is the console endpoint, host:port.
func (o *Orchestrator) address(n *gns3.Node) string {
	host := n.ConsoleHost
	if host == "" {
		host = o.host
	}
	return host + ":" + strconv.Itoa(n.Console)
}

// pickPort returns the index in ports of the port for a subnet. A hint
// selects by name, short name, or index in the node's full port list;
// without a hint, or when nothing matches it, the first free port is used.
// It returns -1 when no ports are left.
func pickPort(ports []gns3.Port, indexOf map[gns3.Port]int, hint string) int {
	if len(ports) == 0 {
		return -1
	}
	if hint == "" {
		return 0
	}
	for i, p := range ports {
		if p.Name == hint || p.ShortName == hint || strconv.Itoa(indexOf[p]) == hint {
			return i
		}
	}
	return 0
}

func endpointOf(nodeID string, p gns3.Port) gns3.LinkEndpoint {
	return gns3.LinkEndpoint{NodeID: nodeID, AdapterNumber: p.AdapterNumber, PortNumber: p.PortNumber}
}
