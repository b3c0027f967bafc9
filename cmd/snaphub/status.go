package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/snaphub/internal/rpc"
)

func newStatusCmd() *cobra.Command {
	cmd := newClientCmd("status", "Show daemon status", cobra.NoArgs,
		func(ctx context.Context, c *rpc.Client, v *viper.Viper, _ []string) error {
			resp, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			if v.GetBool("json") {
				return printJSON(resp)
			}
			printStatus(resp)
			return nil
		})
	cmd.Flags().Bool("json", false, "output raw JSON")
	return cmd
}

func printStatus(resp *rpc.StatusResponse) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Version:\t%s\n", resp.Version)
	_, _ = fmt.Fprintf(w, "Storage:\t%s\n", resp.StorageDir)
	_, _ = fmt.Fprintf(w, "Images:\t%d\n", resp.Images)
	_, _ = fmt.Fprintf(w, "Clipboard:\t%s\n", orDash(resp.Backend))
	_, _ = fmt.Fprintf(w, "Polling:\t%t\n", resp.Polling)
	if resp.LastSeenMS > 0 {
		_, _ = fmt.Fprintf(w, "Last capture:\t%s\n", fmtAge(time.UnixMilli(resp.LastSeenMS)))
	} else {
		_, _ = fmt.Fprintf(w, "Last capture:\t-\n")
	}
	_, _ = fmt.Fprintf(w, "Last hash:\t%s\n", orDash(resp.LastHash))
	_, _ = fmt.Fprintf(w, "Watchers:\t%d\n", resp.Subscribers)
	_, _ = fmt.Fprintf(w, "Events:\t%d\n", resp.Published)
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
