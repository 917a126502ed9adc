package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/gns3cp/pkg/settings"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := cfg.Redacted().Marshal()
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var (
		address string
		port    int
		user    string
	)
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file for a GNS3 server",
		Long: `Write the effective configuration, with the given server overrides, to
path (default ~/.gns3cp/gns3cp.yaml).

  gns3cp config init --address 10.0.0.5 --user admin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settings.DefaultSettingsPath()
			if len(args) == 1 {
				path = args[0]
			}
			if address != "" {
				cfg.Server.Address = address
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if user != "" {
				cfg.Server.User = user
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			fmt.Printf("%s Wrote %s\n", green("✓"), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "GNS3 server address")
	cmd.Flags().IntVar(&port, "port", 0, "GNS3 server port")
	cmd.Flags().StringVar(&user, "user", "", "GNS3 server user")
	return cmd
}
