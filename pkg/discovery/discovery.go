// Package discovery reads what the orchestrator needs to know about a GNS3
// server when it is first added to inventory.
package discovery

import (
	"context"
	"fmt"

	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/util"
)

// API is the part of the GNS3 client discovery uses.
type API interface {
	Version(ctx context.Context) (*gns3.VersionInfo, error)
}

// Inventory describes a discovered server.
type Inventory struct {
	Address string `json:"address" yaml:"address"`
	Version string `json:"version" yaml:"version"`
	Local   bool   `json:"local" yaml:"local"`
}

// Discover reads the server version. It does not retry.
func Discover(ctx context.Context, api API, address string) (*Inventory, error) {
	v, err := api.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: read version of %s: %w", address, err)
	}
	util.WithFields(map[string]interface{}{
		"address": address,
		"version": v.Version,
	}).Info("discovered GNS3 server")
	return &Inventory{Address: address, Version: v.Version, Local: v.Local}, nil
}
