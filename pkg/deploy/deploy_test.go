package deploy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/newtron-network/gns3cp/pkg/device"
	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/gns3/gns3test"
	"github.com/newtron-network/gns3cp/pkg/topology"
	"github.com/newtron-network/gns3cp/pkg/util"
)

const reservation = "res-1"

type fixture struct {
	s       *gns3test.Server
	h       *topology.Helper
	o       *Orchestrator
	pid     string
	mgmt    *gns3.Node
	subnets []*gns3.Node
}

func newFixture(t *testing.T, subnets int) *fixture {
	t.Helper()
	ctx := context.Background()
	s := gns3test.NewServer()
	t.Cleanup(s.Close)
	c := s.Client()
	h := topology.NewHelper(c, topology.DefaultConfig())

	pid, err := h.CreateProject(ctx, reservation)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	mgmt, err := h.ManagementSwitch(ctx, pid, reservation)
	if err != nil {
		t.Fatalf("ManagementSwitch: %v", err)
	}
	f := &fixture{s: s, h: h, o: New(h, c, c.Host()), pid: pid, mgmt: mgmt}
	for i := 0; i < subnets; i++ {
		sw, err := h.CreateSwitch(ctx, pid, fmt.Sprintf("Subnet 10.0.%d.0/24", i))
		if err != nil {
			t.Fatalf("CreateSwitch: %v", err)
		}
		f.subnets = append(f.subnets, sw)
	}
	s.ResetRequests()
	return f
}

func (f *fixture) subnetRequests(hints ...string) []SubnetRequest {
	var out []SubnetRequest
	for i, sw := range f.subnets {
		sr := SubnetRequest{ActionID: fmt.Sprintf("action-%d", i), SubnetID: sw.NodeID}
		if i < len(hints) {
			sr.VNICName = hints[i]
		}
		out = append(out, sr)
	}
	return out
}

// peerOf returns the node the given adapter of nodeID is linked to.
func (f *fixture) peerOf(nodeID string, adapter int) string {
	for _, l := range f.s.Links(f.pid) {
		if p, ok := l.Peer(nodeID, adapter, 0); ok {
			return p.NodeID
		}
	}
	return ""
}

func qemuRequest(attrs map[string]string) *device.Request {
	full := map[string]string{"GNS3 QEMU.HDA Disk Image": "vyos.qcow2"}
	for k, v := range attrs {
		full["GNS3 QEMU."+k] = v
	}
	return &device.Request{
		ActionID:       "deploy-1",
		AppName:        "router",
		DeploymentPath: "GNS3 QEMU",
		Attributes:     full,
		AppResource:    map[string]string{"User": "admin", "Password": "secret"},
	}
}

func TestNodeName(t *testing.T) {
	tests := []struct {
		app, id, want string
	}{
		{"router", "5f3b9c2e-0a1d-4b7e-9c6f-12ab34cd56ef", "router-56ef"},
		{"fw", "abc", "fw-abc"},
	}
	for _, tt := range tests {
		if got := NodeName(tt.app, tt.id); got != tt.want {
			t.Errorf("NodeName(%q, %q) = %q, want %q", tt.app, tt.id, got, tt.want)
		}
	}
}

func TestDeploySuccess(t *testing.T) {
	f := newFixture(t, 2)
	out := f.o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request:     qemuRequest(nil),
		Subnets:     f.subnetRequests(),
	})
	if out.Kind != Succeeded || out.Err() != nil {
		t.Fatalf("Deploy = %v (%v), want succeeded", out.Kind, out.Cause)
	}
	if out.State != StateDone {
		t.Errorf("State = %v, want done", out.State)
	}
	res := out.Result

	node, ok := f.s.Node(f.pid, res.NodeID)
	if !ok {
		t.Fatalf("node %s not found", res.NodeID)
	}
	if node.Name != NodeName("router", res.NodeID) || res.NodeName != node.Name {
		t.Errorf("node name = %q, result name = %q", node.Name, res.NodeName)
	}
	if node.Status != "started" {
		t.Errorf("status = %q, want started", node.Status)
	}
	if want := fmt.Sprintf("127.0.0.1:%d", node.Console); res.Address != want {
		t.Errorf("Address = %q, want %q", res.Address, want)
	}

	if got := f.peerOf(res.NodeID, 0); got != f.mgmt.NodeID {
		t.Errorf("adapter 0 linked to %q, want management switch", got)
	}
	for i, sw := range f.subnets {
		if got := f.peerOf(res.NodeID, i+1); got != sw.NodeID {
			t.Errorf("adapter %d linked to %q, want subnet %d", i+1, got, i)
		}
	}

	if len(res.Subnets) != 2 {
		t.Fatalf("subnet results = %d, want 2", len(res.Subnets))
	}
	if res.Subnets[0].ActionID != "action-0" || res.Subnets[0].Interface != `{"Interface ID":"Ethernet1","MAC Address":""}` {
		t.Errorf("subnet result = %+v", res.Subnets[0])
	}

	wantAttrs := []Attribute{{"User", "admin"}, {"Password", "secret"}}
	for i, a := range wantAttrs {
		if res.Attributes[i] != a {
			t.Errorf("attribute %d = %+v, want %+v", i, res.Attributes[i], a)
		}
	}

	if res.Details == nil || len(res.Details.Interfaces) != 2 {
		t.Fatalf("details = %+v, want 2 subnet interfaces", res.Details)
	}
	if res.Details.RAM != "512 MB" || res.Details.StorageName != "vyos.qcow2" {
		t.Errorf("details = %+v", res.Details)
	}
}

func TestDeployInterfaceHints(t *testing.T) {
	f := newFixture(t, 2)
	out := f.o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request:     qemuRequest(nil),
		Subnets:     f.subnetRequests("3", "e2"),
	})
	if out.Err() != nil {
		t.Fatalf("Deploy: %v", out.Err())
	}
	id := out.Result.NodeID
	if got := f.peerOf(id, 3); got != f.subnets[0].NodeID {
		t.Errorf("adapter 3 linked to %q, want subnet 0", got)
	}
	if got := f.peerOf(id, 2); got != f.subnets[1].NodeID {
		t.Errorf("adapter 2 linked to %q, want subnet 1", got)
	}
	if got := f.peerOf(id, 1); got != "" {
		t.Errorf("adapter 1 linked to %q, want unused", got)
	}
}

func TestDeployManagementExempt(t *testing.T) {
	f := newFixture(t, 1)
	out := f.o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request:     qemuRequest(map[string]string{"Connect Management": "false"}),
		Subnets:     f.subnetRequests(),
	})
	if out.Err() != nil {
		t.Fatalf("Deploy: %v", out.Err())
	}
	if got := f.peerOf(out.Result.NodeID, 0); got != f.subnets[0].NodeID {
		t.Errorf("adapter 0 linked to %q, want subnet switch", got)
	}
	for _, l := range f.s.Links(f.pid) {
		if l.Touches(out.Result.NodeID) && l.Touches(f.mgmt.NodeID) {
			t.Error("exempt node linked to management switch")
		}
	}
}

func TestDeployCompensatesOnStartFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.s.Fail(http.MethodPost, "/start", http.StatusInternalServerError, 1)
	before := len(f.s.Nodes(f.pid))

	out := f.o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request:     qemuRequest(nil),
		Subnets:     f.subnetRequests(),
	})
	if out.Kind != Compensated {
		t.Fatalf("Kind = %v, want compensated", out.Kind)
	}
	if gns3.StatusCode(out.Err()) != http.StatusInternalServerError {
		t.Errorf("Err() = %v, want the start failure", out.Err())
	}
	if out.State != StateSubnetsWired {
		t.Errorf("State = %v, want subnets-wired", out.State)
	}
	if n := f.s.Count(http.MethodDelete, "/nodes/"); n != 1 {
		t.Errorf("node deletes = %d, want 1", n)
	}
	if after := len(f.s.Nodes(f.pid)); after != before {
		t.Errorf("nodes = %d, want %d (deployed node removed)", after, before)
	}
}

func TestDeployCompensatesOnMissingSubnet(t *testing.T) {
	f := newFixture(t, 0)
	out := f.o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request:     qemuRequest(nil),
		Subnets:     []SubnetRequest{{ActionID: "a", SubnetID: "no-such-switch"}},
	})
	if out.Kind != Compensated || !errors.Is(out.Err(), util.ErrNotFound) {
		t.Fatalf("Deploy = %v (%v), want compensated not-found", out.Kind, out.Err())
	}
	if out.State != StateManagementWired {
		t.Errorf("State = %v, want management-wired", out.State)
	}
	for _, n := range f.s.Nodes(f.pid) {
		if strings.HasPrefix(n.Name, "router") {
			t.Errorf("node %s left behind", n.Name)
		}
	}

	var deleted []string
	for _, r := range f.s.Requests() {
		if r.Method == http.MethodDelete {
			deleted = append(deleted, r.Path)
		}
	}
	if len(deleted) != 1 {
		t.Fatalf("deletes = %v, want exactly one", deleted)
	}
	if strings.HasSuffix(deleted[0], "/nodes/"+f.mgmt.NodeID) {
		t.Error("deleted the management switch")
	}
	if !strings.Contains(deleted[0], "/v2/projects/"+f.pid+"/nodes/") {
		t.Errorf("delete path = %s, want a node of %s", deleted[0], f.pid)
	}
}

func TestDeployCompensationFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.s.Fail(http.MethodPost, "/start", http.StatusInternalServerError, 1)
	f.s.Fail(http.MethodDelete, "/nodes/", http.StatusInternalServerError, 1)

	out := f.o.Deploy(context.Background(), Deployment{Reservation: reservation, Request: qemuRequest(nil)})
	if out.Kind != Failed {
		t.Fatalf("Kind = %v, want failed", out.Kind)
	}
	if out.CleanupErr == nil {
		t.Error("CleanupErr = nil, want delete failure")
	}
	if !strings.Contains(out.Message(), "cleanup failed") {
		t.Errorf("Message() = %q", out.Message())
	}
}

func TestDeployCancelledAfterSuccess(t *testing.T) {
	f := newFixture(t, 1)
	out := f.o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request:     qemuRequest(nil),
		Subnets:     f.subnetRequests(),
		Cancelled:   func() bool { return true },
	})
	if out.Kind != Cancelled || out.Err() != nil {
		t.Fatalf("Deploy = %v (%v), want cancelled", out.Kind, out.Err())
	}
	if out.Message() != CancelledMessage {
		t.Errorf("Message() = %q", out.Message())
	}
	if n := f.s.Count(http.MethodDelete, "/nodes/"+out.Result.NodeID+"$"); n != 1 {
		t.Errorf("deletes of %s = %d, want 1", out.Result.NodeID, n)
	}
	if _, ok := f.s.Node(f.pid, out.Result.NodeID); ok {
		t.Error("cancelled node still present")
	}
}

func TestDeployUnresolvedKind(t *testing.T) {
	s := gns3test.NewServer()
	defer s.Close()
	c := s.Client()
	o := New(topology.NewHelper(c, topology.DefaultConfig()), c, c.Host())

	out := o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request:     &device.Request{AppName: "x", DeploymentPath: "Hyper-V"},
	})
	if out.Kind != Failed || !errors.Is(out.Err(), util.ErrUnresolvedDeviceKind) {
		t.Fatalf("Deploy = %v (%v), want unresolved kind", out.Kind, out.Err())
	}
	if n := len(s.Requests()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestDeployCreatesProject(t *testing.T) {
	s := gns3test.NewServer()
	defer s.Close()
	c := s.Client()
	o := New(topology.NewHelper(c, topology.DefaultConfig()), c, c.Host())

	out := o.Deploy(context.Background(), Deployment{Reservation: "res-new", Request: qemuRequest(nil)})
	if out.Err() != nil {
		t.Fatalf("Deploy: %v", out.Err())
	}
	if out.Result.ProjectID == "" {
		t.Fatal("no project ID in result")
	}
	if id, ok := s.ProjectID("res-new"); !ok || id != out.Result.ProjectID {
		t.Errorf("project res-new = %q, want %q", id, out.Result.ProjectID)
	}
}

func TestDeployRenameUniqueness(t *testing.T) {
	f := newFixture(t, 0)
	names := map[string]bool{}
	for i := 0; i < 3; i++ {
		out := f.o.Deploy(context.Background(), Deployment{Reservation: reservation, Request: qemuRequest(nil)})
		if out.Err() != nil {
			t.Fatalf("Deploy #%d: %v", i, out.Err())
		}
		if names[out.Result.NodeName] {
			t.Errorf("name %q reused", out.Result.NodeName)
		}
		names[out.Result.NodeName] = true
	}
}

func TestDeployFollowsRenamedID(t *testing.T) {
	f := newFixture(t, 1)
	f.s.RenameChangesID = true

	out := f.o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request:     qemuRequest(nil),
		Subnets:     f.subnetRequests(),
	})
	if out.Err() != nil {
		t.Fatalf("Deploy: %v", out.Err())
	}
	node, ok := f.s.Node(f.pid, out.Result.NodeID)
	if !ok {
		t.Fatalf("result node %s does not exist", out.Result.NodeID)
	}
	if node.Status != "started" {
		t.Errorf("status = %q, want started", node.Status)
	}
	if got := f.peerOf(node.NodeID, 1); got != f.subnets[0].NodeID {
		t.Errorf("subnet link on %q, want subnet switch", got)
	}
}

func TestDeployTemplateShrink(t *testing.T) {
	f := newFixture(t, 2)
	f.s.AddTemplate(gns3.Template{Name: "VyOS", TemplateType: "qemu", Adapters: 8})
	before := len(f.s.Templates())

	out := f.o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request: &device.Request{
			AppName:        "fw",
			DeploymentPath: "GNS3 Template",
			Attributes: map[string]string{
				"GNS3 Template.Template Name":     "VyOS",
				"GNS3 Template.Shrink Interfaces": "true",
			},
		},
		Subnets: f.subnetRequests(),
	})
	if out.Err() != nil {
		t.Fatalf("Deploy: %v", out.Err())
	}
	node, _ := f.s.Node(f.pid, out.Result.NodeID)
	if len(node.Ports) != 3 {
		t.Errorf("ports = %d, want 3 (two subnets plus management)", len(node.Ports))
	}
	if after := len(f.s.Templates()); after != before {
		t.Errorf("templates = %d, want %d", after, before)
	}
}

func templateRequest(shrink bool) *device.Request {
	attrs := map[string]string{"GNS3 Template.Template Name": "VyOS"}
	if shrink {
		attrs["GNS3 Template.Shrink Interfaces"] = "true"
	}
	return &device.Request{AppName: "fw", DeploymentPath: "GNS3 Template", Attributes: attrs}
}

func TestDeployTemplateShrinkCleanupFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.s.AddTemplate(gns3.Template{Name: "VyOS", TemplateType: "qemu", Adapters: 8})
	f.s.Fail(http.MethodDelete, "/v2/templates/", http.StatusInternalServerError, 1)
	before := len(f.s.Nodes(f.pid))

	out := f.o.Deploy(context.Background(), Deployment{
		Reservation: reservation,
		Request:     templateRequest(true),
		Subnets:     f.subnetRequests(),
	})
	if out.Kind != Succeeded || out.Err() != nil {
		t.Fatalf("Deploy = %v (%v), want succeeded", out.Kind, out.Err())
	}
	if _, ok := f.s.Node(f.pid, out.Result.NodeID); !ok {
		t.Errorf("deployed node %s missing", out.Result.NodeID)
	}
	if after := len(f.s.Nodes(f.pid)); after != before+1 {
		t.Errorf("nodes = %d, want %d", after, before+1)
	}
	if n := f.s.Count(http.MethodDelete, "/nodes/"); n != 0 {
		t.Errorf("node deletes = %d, want 0", n)
	}
}

func TestDeployTemplateRenameFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.s.AddTemplate(gns3.Template{Name: "VyOS", TemplateType: "qemu", Adapters: 4})
	f.s.Fail(http.MethodPut, "/nodes/", http.StatusInternalServerError, 1)
	before := len(f.s.Nodes(f.pid))

	out := f.o.Deploy(context.Background(), Deployment{Reservation: reservation, Request: templateRequest(false)})
	if out.Kind != Failed {
		t.Fatalf("Kind = %v, want failed", out.Kind)
	}
	if gns3.StatusCode(out.Err()) != http.StatusInternalServerError {
		t.Errorf("Err() = %v, want the rename failure", out.Err())
	}
	if out.State != StatePending {
		t.Errorf("State = %v, want pending", out.State)
	}
	if after := len(f.s.Nodes(f.pid)); after != before {
		t.Errorf("nodes = %d, want %d (instantiated node removed)", after, before)
	}
	if n := f.s.Count(http.MethodDelete, "/nodes/"); n != 1 {
		t.Errorf("node deletes = %d, want 1", n)
	}
}

func TestOutcomeErr(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		kind Kind
		want error
	}{
		{Succeeded, nil},
		{Cancelled, nil},
		{Compensated, cause},
		{Failed, cause},
	}
	for _, tt := range tests {
		o := &Outcome{Kind: tt.kind, Cause: cause}
		if got := o.Err(); got != tt.want {
			t.Errorf("Outcome{%v}.Err() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}
