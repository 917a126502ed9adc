package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Read the GNS3 server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := openProvider()
			if err != nil {
				return err
			}
			defer closeFn()

			inv, err := p.Discover(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, inv)
			}
			local := "remote"
			if inv.Local {
				local = "local"
			}
			fmt.Printf("%s GNS3 %s at %s (%s)\n", green("✓"), inv.Version, inv.Address, local)
			return nil
		},
	}
}
