package device

import (
	"strings"

	"github.com/newtron-network/gns3cp/pkg/util"
)

// Kind is the closed set of device kinds gns3cp can deploy.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTemplate clones an existing GNS3 template by name.
	KindTemplate
	// KindQEMU creates a qemu node from a disk image.
	KindQEMU
	// KindDynamips creates a dynamips router with a slot layout.
	KindDynamips
)

// kindTags is scanned in order; the first tag found in the deployment path
// wins. "Template" is checked first so "QEMU Template" clones a template.
var kindTags = []struct {
	tag  string
	kind Kind
}{
	{"Template", KindTemplate},
	{"QEMU", KindQEMU},
	{"Dynamips", KindDynamips},
}

func (k Kind) String() string {
	switch k {
	case KindTemplate:
		return "Template"
	case KindQEMU:
		return "QEMU"
	case KindDynamips:
		return "Dynamips"
	}
	return "Unknown"
}

// NodeType is the GNS3 node_type for kinds that create nodes directly.
func (k Kind) NodeType() string {
	switch k {
	case KindQEMU:
		return "qemu"
	case KindDynamips:
		return "dynamips"
	}
	return ""
}

// ParseKind maps a deployment path onto a Kind using case-insensitive
// substring matching against the known tags.
func ParseKind(deploymentPath string) (Kind, error) {
	lower := strings.ToLower(deploymentPath)
	for _, kt := range kindTags {
		if strings.Contains(lower, strings.ToLower(kt.tag)) {
			return kt.kind, nil
		}
	}
	return KindUnknown, &util.UnresolvedDeviceKindError{Path: deploymentPath}
}
