package device

import (
	"errors"
	"testing"

	"github.com/newtron-network/gns3cp/pkg/util"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		path    string
		want    Kind
		wantErr bool
	}{
		{"QEMU-v1", KindQEMU, false},
		{"GNS3 qemu VM", KindQEMU, false},
		{"Dynamips-7200", KindDynamips, false},
		{"TemplateFoo", KindTemplate, false},
		{"GNS3 QEMU Template", KindTemplate, false},
		{"unknown-os", KindUnknown, true},
		{"", KindUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestParseKindDeterministic(t *testing.T) {
	for i := 0; i < 50; i++ {
		k, err := ParseKind("Dynamips QEMU")
		if err != nil || k != KindQEMU {
			t.Fatalf("ParseKind(%q) = %v, %v; want QEMU on every call", "Dynamips QEMU", k, err)
		}
	}
}

func TestParseKindErrorType(t *testing.T) {
	_, err := ParseKind("vmware")
	if !errors.Is(err, util.ErrUnresolvedDeviceKind) {
		t.Fatalf("ParseKind error = %v, want ErrUnresolvedDeviceKind", err)
	}
	var ue *util.UnresolvedDeviceKindError
	if !errors.As(err, &ue) || ue.Path != "vmware" {
		t.Errorf("ParseKind error = %#v, want path vmware", err)
	}
}

func TestKindNodeType(t *testing.T) {
	if got := KindQEMU.NodeType(); got != "qemu" {
		t.Errorf("KindQEMU.NodeType() = %q", got)
	}
	if got := KindDynamips.NodeType(); got != "dynamips" {
		t.Errorf("KindDynamips.NodeType() = %q", got)
	}
	if got := KindTemplate.NodeType(); got != "" {
		t.Errorf("KindTemplate.NodeType() = %q, want empty", got)
	}
}

func qemuRequest(attrs map[string]string) *Request {
	full := map[string]string{}
	for k, v := range attrs {
		full["GNS3 QEMU."+k] = v
	}
	return &Request{AppName: "router", DeploymentPath: "GNS3 QEMU", Attributes: full}
}

func TestResolveQEMUDefaults(t *testing.T) {
	spec, err := Resolve(qemuRequest(map[string]string{
		AttrHDADiskImage: "vyos.qcow2",
		AttrServer:       "gns3-server",
	}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ns, ok := spec.(*NodeSpec)
	if !ok {
		t.Fatalf("Resolve returned %T, want *NodeSpec", spec)
	}
	if ns.Kind() != KindQEMU || ns.Server != "gns3-server" {
		t.Errorf("spec = kind %v server %q", ns.Kind(), ns.Server)
	}

	p := ns.Payload("local")
	want := map[string]interface{}{
		"node_type":       "qemu",
		"compute_id":      "local",
		"name":            "router",
		"first_port_name": "mgmt0/0",
	}
	for k, v := range want {
		if p[k] != v {
			t.Errorf("payload[%q] = %v, want %v", k, p[k], v)
		}
	}
	props := p["properties"].(map[string]interface{})
	wantProps := map[string]interface{}{
		"hda_disk_image": "vyos.qcow2",
		"ram":            DefaultRAM,
		"adapters":       DefaultQEMUAdapters,
		"adapter_type":   "e1000",
		"qemu_path":      "qemu-system-x86_64",
	}
	for k, v := range wantProps {
		if props[k] != v {
			t.Errorf("properties[%q] = %v, want %v", k, props[k], v)
		}
	}
}

func TestResolveQEMUUserConfigWins(t *testing.T) {
	spec, err := Resolve(qemuRequest(map[string]string{
		AttrRAM:              "2048",
		AttrAdditionalConfig: `{"console_type":"vnc","properties":{"adapters":8,"cpus":2}}`,
	}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	p := spec.(*NodeSpec).Payload("local")
	if p["console_type"] != "vnc" {
		t.Errorf("console_type = %v, want vnc", p["console_type"])
	}
	props := p["properties"].(map[string]interface{})
	if props["adapters"] != float64(8) {
		t.Errorf("adapters = %v, want 8", props["adapters"])
	}
	if props["cpus"] != float64(2) {
		t.Errorf("cpus = %v, want 2", props["cpus"])
	}
	if props["ram"] != 2048 {
		t.Errorf("ram = %v, want 2048", props["ram"])
	}
	if props["adapter_type"] != "e1000" {
		t.Errorf("adapter_type = %v, want default kept", props["adapter_type"])
	}
}

func TestResolveComputeOverride(t *testing.T) {
	spec, err := Resolve(qemuRequest(map[string]string{
		AttrAdditionalConfig: `{"compute_id":"vm-host"}`,
	}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ns := spec.(*NodeSpec)
	if !ns.ComputeOverridden() {
		t.Fatal("ComputeOverridden() = false, want true")
	}
	if got := ns.Payload("local")["compute_id"]; got != "vm-host" {
		t.Errorf("compute_id = %v, want vm-host", got)
	}
}

func TestResolvePayloadIsolated(t *testing.T) {
	spec, _ := Resolve(qemuRequest(nil))
	ns := spec.(*NodeSpec)
	p := ns.Payload("a")
	p["properties"].(map[string]interface{})["ram"] = 1
	if ns.Properties()["ram"] != DefaultRAM {
		t.Error("mutating a payload leaked into the NodeSpec")
	}
}

func TestResolveDynamips(t *testing.T) {
	req := &Request{
		AppName:        "c7200",
		DeploymentPath: "GNS3 Dynamips",
		Attributes: map[string]string{
			"GNS3 Dynamips.Image":    "c7200.image",
			"GNS3 Dynamips.Platform": "c7200",
			"GNS3 Dynamips.Slot 1":   "PA-FE-TX",
			"GNS3 Dynamips.Slot 3":   "PA-2FE-TX",
		},
	}
	spec, err := Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	p := spec.(*NodeSpec).Payload("local")
	if p["node_type"] != "dynamips" {
		t.Errorf("node_type = %v", p["node_type"])
	}
	props := p["properties"].(map[string]interface{})
	if props["platform"] != "c7200" || props["image"] != "c7200.image" {
		t.Errorf("properties = %v", props)
	}
	if props["slot1"] != "PA-FE-TX" || props["slot3"] != "PA-2FE-TX" {
		t.Errorf("slots = %v, %v", props["slot1"], props["slot3"])
	}
	if _, ok := props["slot2"]; ok {
		t.Error("slot2 set without attribute")
	}
}

func TestResolveTemplate(t *testing.T) {
	req := &Request{
		AppName:        "fw",
		DeploymentPath: "GNS3 Template",
		Attributes: map[string]string{
			"GNS3 Template.Template Name":            "VyOS",
			"GNS3 Template.Shrink Interfaces":        "true",
			"GNS3 Template.Additional Configuration": `{"ram":1024}`,
		},
	}
	spec, err := Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ts, ok := spec.(*TemplateSpec)
	if !ok {
		t.Fatalf("Resolve returned %T, want *TemplateSpec", spec)
	}
	if ts.TemplateName != "VyOS" || !ts.ShrinkInterfaces {
		t.Errorf("spec = %+v", ts)
	}
	if ts.Config["ram"] != float64(1024) {
		t.Errorf("config ram = %v", ts.Config["ram"])
	}
	if got := ts.InterfaceCount(3); got != 4 {
		t.Errorf("InterfaceCount(3) = %d, want 4", got)
	}
	ts.ShrinkInterfaces = false
	if got := ts.InterfaceCount(3); got != 0 {
		t.Errorf("InterfaceCount(3) without shrink = %d, want 0", got)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{"unknown kind", &Request{AppName: "x", DeploymentPath: "Hyper-V"}},
		{"template without name", &Request{AppName: "x", DeploymentPath: "Template"}},
		{"bad ram", qemuRequest(map[string]string{AttrRAM: "lots"})},
		{"bad config", qemuRequest(map[string]string{AttrAdditionalConfig: "{not json"})},
	}
	for _, tt := range tests {
		if _, err := Resolve(tt.req); err == nil {
			t.Errorf("%s: Resolve() error = nil, want error", tt.name)
		}
	}
}

func TestRequestAccessors(t *testing.T) {
	r := &Request{
		DeploymentPath: "GNS3 QEMU",
		Attributes:     map[string]string{"GNS3 QEMU.Connect Management": "false"},
		AppResource:    map[string]string{"User": "admin", "Password": "secret"},
	}
	if r.ConnectManagement() {
		t.Error("ConnectManagement() = true, want false")
	}
	if r.User() != "admin" || r.Password() != "secret" {
		t.Errorf("User/Password = %q/%q", r.User(), r.Password())
	}
	r.Attributes = nil
	if !r.ConnectManagement() {
		t.Error("ConnectManagement() default = false, want true")
	}
}
