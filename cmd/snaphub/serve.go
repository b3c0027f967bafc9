package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"go.klb.dev/snaphub/internal/clip"
	"go.klb.dev/snaphub/internal/hub"
	"go.klb.dev/snaphub/internal/ipc"
	"go.klb.dev/snaphub/internal/poller"
	"go.klb.dev/snaphub/internal/rpc"
	"go.klb.dev/snaphub/internal/store"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clipboard poller and image store daemon",
		Long: `Starts the snaphub daemon: polls the system clipboard, stores new images,
and serves the request surface on the local IPC socket. With --addr it also
serves gRPC and an HTTP/JSON gateway on one TCP port.

Config file search order:
  /etc/snaphub/snaphub.toml
  $HOME/.config/snaphub/snaphub.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → SNAPHUB_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.String("storage-dir", store.DefaultDir(), "image storage directory")
	f.Duration("interval", poller.DefaultInterval, "clipboard poll interval")
	f.Duration("cooldown", poller.DefaultCooldown, "minimum gap between accepted detections")
	f.String("addr", "", "TCP listen address for gRPC + HTTP (empty = IPC only)")
	f.String("token", "", "bearer token required on the TCP listener (empty = no auth)")
	f.String("socket", ipc.SocketPath(), "IPC socket path")
	f.Bool("rescan", false, "index images already in the storage directory at startup")
	f.Bool("watch-dir", true, "drop index entries whose files are removed externally")
	f.Bool("no-poll", false, "disable clipboard polling (request surface only)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	if err := setupLogging(v); err != nil {
		return err
	}

	addr := v.GetString("addr")
	noPoll := v.GetBool("no-poll")

	slog.Info("snaphub starting",
		"version", Version,
		"storage_dir", v.GetString("storage-dir"),
		"addr", addr,
		"polling", !noPoll,
		"auth", v.GetString("token") != "",
	)

	st, err := store.New(v.GetString("storage-dir"))
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if v.GetBool("rescan") {
		if _, err := st.Rescan(); err != nil {
			return fmt.Errorf("rescan: %w", err)
		}
	}

	h := hub.New()
	backend := clip.New()
	defer backend.Close()

	cfg := rpc.Config{
		Store:     st,
		Hub:       h,
		Clipboard: backend,
		Version:   Version,
	}
	var p *poller.Poller
	if !noPoll {
		p = poller.New(backend, st, h,
			poller.WithInterval(v.GetDuration("interval")),
			poller.WithCooldown(v.GetDuration("cooldown")),
		)
		cfg.Poller = p
	}

	ipcLn, err := ipc.Listen(v.GetString("socket"))
	if err != nil {
		return err
	}
	slog.Info("IPC socket listening", "path", ipcLn.Addr())
	ipcSrv := grpc.NewServer(rpc.ServerOptions()...)
	rpc.Register(ipcSrv, rpc.NewService(cfg))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ipcSrv.Serve(ipcLn) })
	shutdown := []func(){ipcSrv.Stop}

	if addr != "" {
		tcpCfg := cfg
		tcpCfg.Token = v.GetString("token")
		stopTCP, err := serveTCP(g, addr, rpc.NewService(tcpCfg))
		if err != nil {
			ipcSrv.Stop()
			return err
		}
		shutdown = append(shutdown, stopTCP)
	}

	if v.GetBool("watch-dir") {
		g.Go(func() error { return st.Watch(ctx) })
	}
	if p != nil {
		g.Go(func() error { return p.Run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("snaphub shutting down")
		for _, fn := range shutdown {
			fn()
		}
		return nil
	})

	return g.Wait()
}

// serveTCP splits one TCP listener into gRPC (HTTP/2 with a grpc
// content-type) and the HTTP/1.1 JSON gateway. The returned func stops both.
func serveTCP(g *errgroup.Group, addr string, svc *rpc.Service) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	gw, err := rpc.NewGateway(svc)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("gateway: %w", err)
	}

	m := cmux.New(ln)
	grpcLn := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpLn := m.Match(cmux.HTTP1Fast())

	grpcSrv := grpc.NewServer(rpc.ServerOptions()...)
	rpc.Register(grpcSrv, svc)
	httpSrv := &http.Server{Handler: gw, ReadHeaderTimeout: 10 * time.Second}

	slog.Info("listening", "addr", ln.Addr(), "protocols", "grpc,http")

	g.Go(func() error { return grpcSrv.Serve(grpcLn) })
	g.Go(func() error { return ignoreClosed(httpSrv.Serve(httpLn)) })
	g.Go(func() error { return ignoreClosed(m.Serve()) })

	return func() {
		grpcSrv.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
		_ = ln.Close()
	}, nil
}

func ignoreClosed(err error) error {
	if err == nil ||
		errors.Is(err, http.ErrServerClosed) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
