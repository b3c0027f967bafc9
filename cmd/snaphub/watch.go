package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/snaphub/internal/rpc"
)

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a line for every image the daemon captures",
		Long: `Streams capture events until interrupted. Each line is the stored path,
or a JSON object with --json.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runWatch(cmd.Context(), v) },
	}
	cmd.Flags().Bool("json", false, "print events as JSON")
	addClientFlags(cmd)
	return cmd
}

func runWatch(ctx context.Context, v *viper.Viper) error {
	conn, err := dial(v)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := rpc.NewClient(conn).Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	jsonOut := v.GetBool("json")
	for {
		ev, err := w.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
		if jsonOut {
			if err := printJSON(ev); err != nil {
				return err
			}
			continue
		}
		fmt.Println(ev.Path)
	}
}
