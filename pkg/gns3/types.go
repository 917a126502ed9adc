package gns3

// Project is a GNS3 project. gns3cp keeps one project per sandbox
// reservation, named after the reservation ID.
type Project struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Status    string `json:"status,omitempty"`
}

// Node is a device instance inside a project, switches included.
type Node struct {
	NodeID      string                 `json:"node_id"`
	ProjectID   string                 `json:"project_id,omitempty"`
	Name        string                 `json:"name"`
	NodeType    string                 `json:"node_type,omitempty"`
	ComputeID   string                 `json:"compute_id,omitempty"`
	Status      string                 `json:"status,omitempty"` // "started", "stopped", "suspended"
	Console     int                    `json:"console,omitempty"`
	ConsoleHost string                 `json:"console_host,omitempty"`
	ConsoleType string                 `json:"console_type,omitempty"`
	Ports       []Port                 `json:"ports,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}

// Port is one attachment point on a node. (PortNumber, AdapterNumber) is
// unique within the owning node only.
type Port struct {
	Name          string `json:"name"`
	ShortName     string `json:"short_name,omitempty"`
	PortNumber    int    `json:"port_number"`
	AdapterNumber int    `json:"adapter_number"`
	LinkType      string `json:"link_type,omitempty"`
	MACAddress    string `json:"mac_address,omitempty"`
}

// Link is an undirected edge between two endpoints. The server does not keep
// endpoint order stable, so readers must check both orderings.
type Link struct {
	LinkID           string         `json:"link_id,omitempty"`
	CaptureComputeID string         `json:"capture_compute_id,omitempty"`
	Nodes            []LinkEndpoint `json:"nodes"`
}

// LinkEndpoint is one side of a link.
type LinkEndpoint struct {
	NodeID        string `json:"node_id"`
	AdapterNumber int    `json:"adapter_number"`
	PortNumber    int    `json:"port_number"`
}

// Touches reports whether either endpoint belongs to nodeID.
func (l *Link) Touches(nodeID string) bool {
	for _, ep := range l.Nodes {
		if ep.NodeID == nodeID {
			return true
		}
	}
	return false
}

// Peer returns the endpoint opposite to the one matching (nodeID, adapter,
// port), or false when no endpoint matches.
func (l *Link) Peer(nodeID string, adapter, port int) (LinkEndpoint, bool) {
	if len(l.Nodes) != 2 {
		return LinkEndpoint{}, false
	}
	a, b := l.Nodes[0], l.Nodes[1]
	switch {
	case a.NodeID == nodeID && a.AdapterNumber == adapter && a.PortNumber == port:
		return b, true
	case b.NodeID == nodeID && b.AdapterNumber == adapter && b.PortNumber == port:
		return a, true
	}
	return LinkEndpoint{}, false
}

// Compute is a GNS3 compute (server or VM) that can host nodes.
type Compute struct {
	ComputeID string `json:"compute_id"`
	Name      string `json:"name"`
	Host      string `json:"host,omitempty"`
	Connected bool   `json:"connected,omitempty"`
}

// Template is a reusable node definition.
type Template struct {
	TemplateID   string `json:"template_id"`
	Name         string `json:"name"`
	TemplateType string `json:"template_type,omitempty"`
	Builtin      bool   `json:"builtin,omitempty"`
	Adapters     int    `json:"adapters,omitempty"`
}

// VersionInfo is the payload of GET /v2/version.
type VersionInfo struct {
	Version string `json:"version"`
	Local   bool   `json:"local"`
}

// Built-in template IDs shipped with every GNS3 2.x server.
const (
	CloudTemplateID          = "39e257dc-8412-3174-b6b3-0ee3ed6a43e9"
	EthernetSwitchTemplateID = "1966b864-93e7-32d5-965f-001384eec461"
)
