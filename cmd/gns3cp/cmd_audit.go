package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/gns3cp/pkg/audit"
	"github.com/newtron-network/gns3cp/pkg/cli"
)

func newAuditCmd() *cobra.Command {
	var (
		operation string
		since     time.Duration
		failures  bool
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the operation audit log",
		Long: `Show recorded operations, oldest first.

  gns3cp audit -r res-1
  gns3cp audit --failures --since 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, _ := resolveReservation(reservation)
			l, err := cfg.OpenAudit()
			if err != nil {
				return err
			}
			defer l.Close()

			f := audit.Filter{
				Reservation: res,
				Operation:   operation,
				FailureOnly: failures,
				Limit:       limit,
			}
			if since > 0 {
				f.StartTime = time.Now().Add(-since)
			}
			events, err := l.Query(f)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, events)
			}
			if len(events) == 0 {
				fmt.Println("no audit events")
				return nil
			}
			t := cli.NewTable("TIME", "OPERATION", "RESERVATION", "NODE", "RESULT", "DURATION")
			for _, ev := range events {
				result := green("ok")
				if !ev.Success {
					result = red(ev.Error)
				}
				t.Row(cli.Dim(ev.Timestamp.Format("2006-01-02 15:04:05")), ev.Operation, ev.Reservation, ev.NodeID,
					result, ev.Duration.Round(time.Millisecond).String())
			}
			t.Flush()
			return nil
		},
	}
	cmd.Flags().StringVar(&operation, "operation", "", "only this operation (deploy, power_on, ...)")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this")
	cmd.Flags().BoolVar(&failures, "failures", false, "only failed operations")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum events to show")
	return cmd
}
