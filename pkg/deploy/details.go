package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/topology"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// Details is the instance view of a node: identity, sizing, and the
// subnet switches its ports are attached to.
type Details struct {
	AppName     string             `json:"app_name" yaml:"app_name"`
	NodeID      string             `json:"node_id" yaml:"node_id"`
	NodeType    string             `json:"node_type" yaml:"node_type"`
	StorageName string             `json:"storage_name" yaml:"storage_name"`
	RAM         string             `json:"ram" yaml:"ram"`
	Interfaces  []InterfaceDetails `json:"interfaces" yaml:"interfaces"`
}

// InterfaceDetails is one node port attached to a subnet switch.
type InterfaceDetails struct {
	AdapterNumber int    `json:"adapter_number" yaml:"adapter_number"`
	PortName      string `json:"port_name" yaml:"port_name"`
	NetworkID     string `json:"network_id" yaml:"network_id"`
	MACAddress    string `json:"mac_address" yaml:"mac_address"`
}

// VMDetails builds Details for node. Ports linked to the management switch,
// and unlinked ports, are left out.
func VMDetails(ctx context.Context, h *topology.Helper, projectID, reservation, appName string, node *gns3.Node) (*Details, error) {
	d := &Details{
		AppName:     appName,
		NodeID:      node.NodeID,
		NodeType:    node.NodeType,
		StorageName: stringProp(node.Properties, "hda_disk_image"),
		RAM:         fmt.Sprintf("%v MB", node.Properties["ram"]),
	}

	mgmtID := ""
	mgmt, err := h.ManagementSwitch(ctx, projectID, reservation)
	switch {
	case err == nil:
		mgmtID = mgmt.NodeID
	case !errors.Is(err, util.ErrNotFound):
		return nil, err
	}

	links, err := h.LinksForNode(ctx, projectID, node.NodeID)
	if err != nil {
		return nil, err
	}

	for _, p := range node.Ports {
		network := ""
		for i := range links {
			peer, ok := links[i].Peer(node.NodeID, p.AdapterNumber, p.PortNumber)
			if ok && peer.NodeID != mgmtID {
				network = peer.NodeID
			}
		}
		if network == "" {
			continue
		}
		d.Interfaces = append(d.Interfaces, InterfaceDetails{
			AdapterNumber: p.AdapterNumber,
			PortName:      p.Name,
			NetworkID:     network,
			MACAddress:    p.MACAddress,
		})
	}
	return d, nil
}

func stringProp(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
