package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/newtron-network/gns3cp/pkg/cli"
	"github.com/newtron-network/gns3cp/pkg/deploy"
	"github.com/newtron-network/gns3cp/pkg/provider"
)

func newDeployCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy one node into a reservation",
		Long: `Deploy one app as a GNS3 node, wire it to the management switch and
the requested subnet switches, and start it.

Interrupting the command before the node is started removes the node.

  gns3cp deploy -r res-1 -f router.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("deploy needs a request file (-f)")
			}
			var req provider.DeployRequest
			if err := provider.LoadFile(file, &req); err != nil {
				return err
			}
			if err := overrideReservation(&req.Reservation); err != nil {
				return err
			}

			p, closeFn, err := openProvider()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			fmt.Printf("Deploying %s into %s...\n", req.App.AppName, req.Reservation)
			out, err := p.Deploy(ctx, &req, cancelledBy(ctx))
			if out == nil {
				return err
			}
			if jsonOutput {
				if jerr := printJSON(os.Stdout, out.Result); jerr != nil {
					return jerr
				}
				return err
			}
			printOutcome(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "deploy request file")
	return cmd
}

func cancelledBy(ctx context.Context) deploy.CancellationProbe {
	return func() bool { return ctx.Err() != nil }
}

func printOutcome(out *deploy.Outcome) {
	switch out.Kind {
	case deploy.Succeeded:
		r := out.Result
		fmt.Printf("%s Deployed %s (%s)\n", green("✓"), r.NodeName, r.NodeID)
		t := cli.NewTable("ATTRIBUTE", "VALUE").WithPrefix("  ")
		for _, a := range r.Attributes {
			t.Row(a.Name, a.Value)
		}
		t.Flush()
		for _, sn := range r.Subnets {
			fmt.Printf("  subnet %s: %s\n", sn.SubnetID, sn.Interface)
		}
	case deploy.Cancelled:
		fmt.Printf("%s %s\n", cli.Yellow("!"), out.Message())
		if out.CleanupErr != nil {
			fmt.Printf("  %s node removal failed: %v\n", red("✗"), out.CleanupErr)
		}
	default:
		fmt.Printf("%s %s (state %s)\n", red("✗"), out.Message(), out.State)
		if out.CleanupErr != nil {
			fmt.Printf("  cleanup failed: %v\n", out.CleanupErr)
		}
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <node-id>",
		Short: "Delete a deployed node",
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

			msg, err := p.DeleteInstance(cmd.Context(), res, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", green("✓"), msg)
			return nil
		},
	}
}
