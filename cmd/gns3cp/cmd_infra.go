package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/gns3cp/pkg/cli"
	"github.com/newtron-network/gns3cp/pkg/provider"
)

func newPrepareCmd() *cobra.Command {
	var (
		file    string
		keyFile string
	)
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Create the reservation project and subnet switches",
		Long: `Create the reservation's GNS3 project (if missing) and one Ethernet
switch per subnet, and generate an SSH access key.

The request file is YAML or JSON:

  reservation: res-1
  subnets:
    - cidr: 10.0.0.0/24
    - alias: backend

  gns3cp prepare -f infra.yaml
  gns3cp prepare -r res-1 -f infra.yaml --key-out res-1.key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req provider.InfraRequest
			if file != "" {
				if err := provider.LoadFile(file, &req); err != nil {
					return err
				}
			}
			if err := overrideReservation(&req.Reservation); err != nil {
				return err
			}

			p, closeFn, err := openProvider()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := p.PrepareInfra(cmd.Context(), &req)
			if err != nil {
				return err
			}
			if keyFile != "" && res.AccessKey != nil {
				if err := os.WriteFile(keyFile, []byte(res.AccessKey.PrivateKey), 0600); err != nil {
					return fmt.Errorf("write key: %w", err)
				}
			}
			if jsonOutput {
				return printJSON(os.Stdout, res)
			}

			fmt.Printf("%s Project %s ready for %s\n", green("✓"), res.ProjectID, req.Reservation)
			if len(res.Subnets) > 0 {
				t := cli.NewTable("SUBNET", "SWITCH ID", "ACTION")
				for _, sn := range res.Subnets {
					t.Row(sn.Name, sn.SubnetID, sn.ActionID)
				}
				t.Flush()
			}
			if keyFile != "" {
				fmt.Printf("Private key written to %s\n", keyFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "infrastructure request file")
	cmd.Flags().StringVar(&keyFile, "key-out", "", "write the generated private key to this file")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var actionID string
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the reservation project and its records",
		Args:  cobra.NoArgs,
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

			out, err := p.CleanupInfra(cmd.Context(), res, actionID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, out)
			}
			fmt.Printf("%s %s\n", green("✓"), out.InfoMessage)
			return nil
		},
	}
	cmd.Flags().StringVar(&actionID, "action-id", "", "action id echoed in the result")
	return cmd
}

// overrideReservation replaces a file-provided reservation when one was
// given on the command line or in the environment.
func overrideReservation(dst *string) error {
	res, err := resolveReservation(reservation)
	if err != nil {
		if *dst != "" {
			return nil
		}
		return err
	}
	*dst = res
	return nil
}
