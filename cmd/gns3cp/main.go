// gns3cp drives a GNS3 server on behalf of a sandbox orchestrator: it
// prepares per-reservation projects and subnet switches, deploys and powers
// nodes, and tears everything down again.
//
// Usage:
//
//	gns3cp discover                     Read the server version
//	gns3cp prepare -r <res> -f infra.yaml
//	                                    Create the project and subnet switches
//	gns3cp deploy -r <res> -f app.yaml  Deploy one node
//	gns3cp status [-r <res>]            Show deployment records
//	gns3cp stop -r <res> <node-id>      Power a node off
//	gns3cp start -r <res> <node-id>     Power a node on
//	gns3cp delete -r <res> <node-id>    Delete a node
//	gns3cp cleanup -r <res>             Delete the reservation's project
//	gns3cp serve                        Serve the operations over HTTP
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/gns3cp/pkg/settings"
	"github.com/newtron-network/gns3cp/pkg/util"
	"github.com/newtron-network/gns3cp/pkg/version"
)

var (
	cfgFile     string
	reservation string
	verbose     bool
	logJSON     bool
	jsonOutput  bool

	cfg *settings.Settings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "gns3cp",
	Short:             "GNS3 topology orchestration for sandbox reservations",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `gns3cp builds and tears down GNS3 topologies for sandbox reservations.

Each reservation gets one GNS3 project holding a management switch, one
Ethernet switch per subnet, and the deployed nodes.

  gns3cp prepare -r res-1 -f infra.yaml
  gns3cp deploy -r res-1 -f router.yaml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = s

		level := s.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := util.SetLogLevel(level); err != nil {
			return err
		}
		format := s.Logging.Format
		if logJSON {
			format = "json"
		}
		util.SetLogFormat(format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.gns3cp/gns3cp.yaml)")
	rootCmd.PersistentFlags().StringVarP(&reservation, "reservation", "r", "", "reservation id (or $GNS3CP_RESERVATION)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output")

	rootCmd.AddCommand(
		newDiscoverCmd(),
		newPrepareCmd(),
		newCleanupCmd(),
		newDeployCmd(),
		newDeleteCmd(),
		newStartCmd(),
		newStopCmd(),
		newDetailsCmd(),
		newStatusCmd(),
		newServeCmd(),
		newAuditCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip settings loading so version works without a config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gns3cp %s\n", version.Info())
		},
	}
}
