package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/gns3cp/pkg/cli"
	"github.com/newtron-network/gns3cp/pkg/provider"
	"github.com/newtron-network/gns3cp/pkg/state"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show deployment records",
		Long: `Show the nodes gns3cp deployed, from its local records.

Without --reservation, shows every reservation.

  gns3cp status
  gns3cp status -r res-1 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, _ := resolveReservation(reservation)
			p, closeFn, err := openProvider()
			if err != nil {
				return err
			}
			defer closeFn()

			recs, err := p.Status(cmd.Context(), res)
			if err != nil {
				return err
			}
			if jsonOutput {
				if recs == nil {
					recs = []*state.Record{}
				}
				return printJSON(os.Stdout, recs)
			}
			if len(recs) == 0 {
				fmt.Println("no deployed nodes")
				return nil
			}
			printRecords(recs)
			return nil
		},
	}
}

func printRecords(recs []*state.Record) {
	t := cli.NewTable("RESERVATION", "NODE", "APP", "KIND", "STATUS", "ADDRESS", "NODE ID")
	for _, r := range recs {
		t.Row(r.Reservation, bold(r.NodeName), r.AppName, r.Kind, cli.Status(r.Status), r.Address, r.NodeID)
	}
	t.Flush()
}

func newDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details <node-id>...",
		Short: "Show node details and subnet interfaces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resolveReservation(reservation)
			if err != nil {
				return err
			}
			p, closeFn, err := openProvider()
			if err != nil {
				return err
			}
			defer closeFn()

			recs, err := p.Status(cmd.Context(), res)
			if err != nil {
				return err
			}
			out, err := p.VMDetails(cmd.Context(), res, detailsRequests(args, recs))
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, out)
			}
			for _, d := range out {
				fmt.Printf("%s %s (%s)\n", bold(d.AppName), d.NodeID, d.NodeType)
				fmt.Printf("  %s %s\n", cli.DotPad("image", 10), d.StorageName)
				fmt.Printf("  %s %s\n", cli.DotPad("ram", 10), d.RAM)
				t := cli.NewTable("ADAPTER", "PORT", "NETWORK", "MAC").WithPrefix("  ")
				for _, i := range d.Interfaces {
					t.Row(fmt.Sprint(i.AdapterNumber), i.PortName, i.NetworkID, i.MACAddress)
				}
				t.Flush()
			}
			return nil
		},
	}
}

// detailsRequests names each node by its recorded app name, falling back
// to the node id for nodes without a record.
func detailsRequests(nodeIDs []string, recs []*state.Record) []provider.DetailsRequest {
	apps := make(map[string]string, len(recs))
	for _, r := range recs {
		apps[r.NodeID] = r.AppName
	}
	reqs := make([]provider.DetailsRequest, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		app := apps[id]
		if app == "" {
			app = id
		}
		reqs = append(reqs, provider.DetailsRequest{AppName: app, NodeID: id})
	}
	return reqs
}
