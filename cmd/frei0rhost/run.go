// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/frei0rhost/frei0rhost/internal/config"
	"github.com/frei0rhost/frei0rhost/internal/control"
	"github.com/frei0rhost/frei0rhost/internal/framebus"
	"github.com/frei0rhost/frei0rhost/internal/host"
	"github.com/frei0rhost/frei0rhost/internal/observability"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
	bustls "github.com/frei0rhost/frei0rhost/internal/tls"
)

// shutdownTimeout bounds graceful shutdown of the servers.
const shutdownTimeout = 5 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "run [plugin]",
		Short: "Drive a plugin and publish its frames",
		Long: `Load a frei0r plugin, drive it every interval and publish each output
frame on the frame bus. The plugin is a path, a file name found in the
plugin directories, or "none".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := cmd.Flags().Set("plugin", args[0]); err != nil {
					return err
				}
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runHost(ctx, cfg, cmd)
		},
	}

	addPluginFlags(cmd)
	cmd.Flags().String("plugin", d.Plugin, "plugin to activate (path, file name or none)")
	cmd.Flags().Int("width", d.Width, "output width, rounded down to a multiple of 8")
	cmd.Flags().Int("height", d.Height, "output height, rounded down to a multiple of 8")
	cmd.Flags().String("interval", d.Interval, "update period")
	cmd.Flags().String("topic", d.Topic, "topic of published frames")
	cmd.Flags().StringArray("param", nil, `parameter assignment such as "speed=0.5", repeatable`)
	cmd.Flags().StringSlice("input", nil, "topic feeding the next input slot, repeatable (max 3)")
	cmd.Flags().String("metrics-addr", d.Metrics.Addr, "metrics, health, preview and params HTTP address (empty = disabled)")
	cmd.Flags().Bool("preview", d.Metrics.Preview, "serve a websocket frame preview at /preview")
	cmd.Flags().String("bus-addr", "", "serve the frame bus over gRPC at this address")
	cmd.Flags().String("bus-remote", "", "publish to and read inputs from a remote frame bus")
	cmd.Flags().String("bus-certs", "", "mTLS certificates directory for the frame bus (see 'frei0rhost certs')")
	cmd.Flags().String("control", d.Control, "control socket name (empty = disabled)")

	return cmd
}

// runHost wires the driver to the frame bus and servers and runs it until
// ctx is done.
func runHost(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	opener, err := newOpener(cfg)
	if err != nil {
		return err
	}
	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}
	presets, err := cfg.Assignments()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path := host.None
	if cfg.Plugin != host.None && cfg.Plugin != "" {
		path, err = scanner.Resolve(ctx, cfg.Plugin)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := framebus.NewBroadcaster(framebus.DefaultBuffer)

	var remote *framebus.Client
	publisher := framebus.Publisher(bus)
	if cfg.Bus.Remote != "" {
		clientCfg := framebus.ClientConfig{Address: cfg.Bus.Remote}
		if cfg.Bus.Certs != "" {
			if clientCfg.TLSConfig, err = bustls.ClientConfig(cfg.Bus.Certs, bustls.PeerName); err != nil {
				return err
			}
		}
		remote, err = framebus.NewClient(ctx, clientCfg)
		if err != nil {
			return err
		}
		defer func() { _ = remote.Close() }()
		publisher = remote
	}

	driver := host.New(opener,
		host.WithPublisher(publisher),
		host.WithTopic(cfg.Topic),
		host.WithPresets(presets),
		host.WithSchemaHook(func(s host.Schema) {
			for i, p := range s.Params {
				slog.Info("plugin parameter",
					"plugin", s.Info.Name,
					"index", i,
					"name", p.Name,
					"kind", p.Kind.String(),
					"explanation", p.Explanation)
			}
		}),
	)
	defer func() { _ = driver.Close() }()
	driver.Resize(cfg.Width, cfg.Height)
	driver.Select(path)

	for slot, topic := range cfg.Inputs {
		go feedInput(ctx, driver, slot, topic, bus, remote)
	}

	var grpcServer *grpc.Server
	if cfg.Bus.Addr != "" {
		listener, err := net.Listen("tcp", cfg.Bus.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Bus.Addr, err)
		}
		opts := framebus.ServerOptions()
		if cfg.Bus.Certs != "" {
			tlsCfg, err := bustls.ServerConfig(cfg.Bus.Certs, bustls.PeerName)
			if err != nil {
				_ = listener.Close()
				return err
			}
			opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
		}
		grpcServer = grpc.NewServer(opts...)
		framebus.RegisterFrameBusServer(grpcServer, framebus.NewServer(bus))
		go func() {
			if serveErr := grpcServer.Serve(listener); serveErr != nil {
				slog.Error("frame bus server error, triggering shutdown", "error", serveErr)
				cancel()
			}
		}()
		slog.Info("frame bus listening", "addr", listener.Addr().String(), "tls", cfg.Bus.Certs != "")
	}

	var ctlServer *control.Server
	if cfg.Control != "" {
		ctlServer = control.NewServer(cfg.Control, hostControl{driver: driver, scanner: scanner}, func() { cancel() })
		if err := ctlServer.Start(); err != nil {
			stopGRPC(grpcServer)
			return fmt.Errorf("failed to start control socket: %w", err)
		}
	}

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		opts := []observability.Option{
			observability.WithCollectors(host.RegisterMetrics, framebus.RegisterMetrics),
			observability.WithHandler("/params", host.NewParamsHandler(driver)),
		}
		if cfg.Metrics.Preview {
			opts = append(opts, observability.WithHandler("/preview", framebus.NewPreviewHandler(bus, cfg.Topic)))
		}
		ready := func() bool {
			_, ok := driver.Schema()
			return ok
		}
		obsServer = observability.NewServer(cfg.Metrics.Addr, ready, opts...)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			stopGRPC(grpcServer)
			stopControl(ctlServer)
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	cmd.Println("frei0rhost running")
	slog.Info("host ready",
		"plugin", path,
		"width", cfg.Width,
		"height", cfg.Height,
		"interval", cfg.TickInterval().String(),
		"topic", cfg.Topic,
	)

	runErr := driver.Run(ctx, cfg.TickInterval())
	slog.Info("shutting down...")

	stopGRPC(grpcServer)
	stopControl(ctlServer)
	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
	if err := driver.Close(); err != nil {
		slog.Warn("error closing driver", "error", err)
	}

	slog.Info("shutdown complete")
	return runErr
}

// feedInput copies frames of topic into input slot until ctx is done,
// from the remote bus when one is configured.
func feedInput(ctx context.Context, d *host.Driver, slot int, topic string, bus *framebus.Broadcaster, remote *framebus.Client) {
	set := func(f framebus.Frame) {
		if err := d.SetInput(slot, f); err != nil {
			slog.Debug("dropping input frame", "slot", slot, "topic", topic, "error", err)
		}
	}

	if remote != nil {
		if err := remote.Follow(ctx, topic, set); err != nil {
			slog.Warn("input subscription failed", "slot", slot, "topic", topic, "error", err)
		}
		return
	}

	ch := bus.Subscribe(topic)
	defer bus.Unsubscribe(topic, ch)
	if f, ok := bus.Latest(topic); ok {
		set(f)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-ch:
			if !ok {
				return
			}
			set(f)
		}
	}
}

// hostControl exposes the driver to the control socket, resolving plugin
// references the way the command line does.
type hostControl struct {
	driver  *host.Driver
	scanner *plugin.Scanner
}

func (h hostControl) Select(ctx context.Context, ref string) error {
	if ref == host.None {
		h.driver.Select(host.None)
		return nil
	}
	path, err := h.scanner.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	h.driver.Select(path)
	return nil
}

func (h hostControl) Resize(width, height int) {
	h.driver.Resize(width, height)
}

func (h hostControl) Plugin() control.PluginStatus {
	req := h.driver.Requested()
	st := control.PluginStatus{Requested: req.Path, Width: req.Width, Height: req.Height}
	if s, ok := h.driver.Schema(); ok {
		st.Active = s.Path
		st.Name = s.Info.Name
	}
	return st
}

func stopControl(s *control.Server) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping control socket", "error", err)
	}
}

// stopGRPC stops s gracefully, forcing it after shutdownTimeout since
// subscriptions only end when their clients leave.
func stopGRPC(s *grpc.Server) {
	if s == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		s.Stop()
		<-done
	}
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
