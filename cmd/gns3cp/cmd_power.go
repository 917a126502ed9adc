package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/gns3cp/pkg/provider"
)

type powerFunc func(p *provider.Provider, ctx context.Context, reservation, nodeID string) (*provider.PowerResult, error)

func newStartCmd() *cobra.Command {
	return newPowerCmd("start <node-id>", "Power a node on", (*provider.Provider).PowerOn)
}

func newStopCmd() *cobra.Command {
	return newPowerCmd("stop <node-id>", "Power a node off", (*provider.Provider).PowerOff)
}

func newPowerCmd(use, short string, fn powerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
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

			out, err := fn(p, cmd.Context(), res, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, out)
			}
			fmt.Printf("%s %s: %s (%s)\n", green("✓"), out.NodeName, out.Message, out.LiveStatus)
			return nil
		},
	}
}
