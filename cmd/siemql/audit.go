package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/siemql/siemql/internal/bus"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print recorded audit events",
		Long: `Read the audit event log written when bus.event_log is configured
and print the events, oldest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				path = cfg.Bus.EventLog
			}
			if path == "" {
				return fmt.Errorf("no audit log configured (set bus.event_log or --file)")
			}
			since, _ := cmd.Flags().GetDuration("since")
			limit, _ := cmd.Flags().GetInt("limit")
			format, _ := cmd.Flags().GetString("format")

			var cutoff time.Time
			if since > 0 {
				cutoff = time.Now().Add(-since)
			}
			events, err := bus.ReadEvents(path, cutoff, limit)
			if err != nil {
				return err
			}
			return writeEvents(cmd.OutOrStdout(), events, format)
		},
	}

	cmd.Flags().String("file", "", "audit log path (defaults to bus.event_log)")
	cmd.Flags().Duration("since", 0, "only events newer than this, e.g. 1h")
	cmd.Flags().Int("limit", 0, "maximum number of events (0 = all)")

	return cmd
}

func writeEvents(w io.Writer, events []bus.LoggedEvent, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No audit events.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tSESSION\tPAYLOAD")
	for _, e := range events {
		payload, _ := json.Marshal(e.Event.Payload)
		session := e.Event.CorrelationID
		if session == "" {
			session = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime),
			e.Event.Type,
			session,
			payload,
		)
	}
	return tw.Flush()
}
