package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/snaphub/internal/ipc"
	"go.klb.dev/snaphub/internal/rpc"
)

// addClientFlags adds the flags shared by every request-surface command.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("server", "", "daemon TCP address (default: local IPC socket)")
	f.String("token", "", "bearer token for --server")
	f.String("socket", ipc.SocketPath(), "IPC socket path")
	f.Duration("timeout", 10*time.Second, "request timeout")
	addConfigFlag(cmd)
}

// newClientCmd builds a request-surface sub-command with the standard flags
// and viper wiring. run receives a connected client.
func newClientCmd(use, short string, args cobra.PositionalArgs, run func(ctx context.Context, c *rpc.Client, v *viper.Viper, args []string) error) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    args,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial(v)
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()
			return run(ctx, rpc.NewClient(conn), v, args)
		},
	}
	addClientFlags(cmd)
	return cmd
}

// dial connects to --server over TCP, or to the local IPC socket. The IPC
// socket is owner-restricted, so no token is sent there.
func dial(v *viper.Viper) (*grpc.ClientConn, error) {
	if addr := v.GetString("server"); addr != "" {
		conn, err := grpc.NewClient(addr, rpc.DialOptions(v.GetString("token"))...)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return conn, nil
	}

	path := v.GetString("socket")
	if !ipc.IsRunning(path) {
		return nil, fmt.Errorf("no snaphub daemon on %s (start \"snaphub serve\" or pass --server)", path)
	}
	opts := append(rpc.DialOptions(""), grpc.WithContextDialer(ipc.Dialer(path)))
	conn, err := grpc.NewClient("passthrough:///snaphub", opts...)
	if err != nil {
		return nil, fmt.Errorf("dial ipc %s: %w", path, err)
	}
	return conn, nil
}
