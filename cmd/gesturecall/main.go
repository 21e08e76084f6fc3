package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/gesturecall/internal/app"
	"github.com/ayusman/gesturecall/internal/bus"
	"github.com/ayusman/gesturecall/internal/config"
	"github.com/ayusman/gesturecall/internal/logging"
	"github.com/ayusman/gesturecall/internal/server"
	"github.com/ayusman/gesturecall/internal/store"
	"github.com/ayusman/gesturecall/internal/telemetry"
	"github.com/ayusman/gesturecall/internal/tray"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	addr       string
	camera     int
	mock       bool
	tray       bool
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:          "gesturecall",
		Short:        "Answer or decline calls with hand gestures",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to configuration file")
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address")
	cmd.Flags().IntVar(&f.camera, "camera", 0, "Camera device index")
	cmd.Flags().BoolVar(&f.mock, "mock", false, "Use a test pattern camera and the mock recognizer")
	cmd.Flags().BoolVar(&f.tray, "tray", false, "Show the system tray menu")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// loadConfig reads the config file and applies flags the user set.
func loadConfig(f flags, changed func(name string) bool) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if changed("addr") {
		cfg.HTTP.Addr = f.addr
	}
	if changed("camera") {
		cfg.Camera.Device = f.camera
	}
	if changed("mock") && f.mock {
		cfg.Camera.Mock = true
		cfg.Recognizer.Provider = "mock"
	}
	if changed("tray") {
		cfg.Tray.Enabled = f.tray
	}
	if cfg.Web.Dir == "" {
		cfg.Web.Dir = findWebDir()
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	log := logging.Component(logger, "main")

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	metrics := telemetry.Noop()
	var provider *telemetry.Provider
	if cfg.Telemetry.Metrics {
		provider, err = telemetry.Setup()
		if err != nil {
			return err
		}
		defer provider.Shutdown(context.Background())
		metrics = provider.Metrics
	}

	var publisher bus.Publisher = bus.Nop{}
	if cfg.Bus.Enabled {
		client, err := bus.Connect(ctx, cfg.Bus, logging.Component(logger, "bus"))
		if err != nil {
			log.WithError(err).Warn("call events will not be published")
		} else {
			publisher = client
		}
	}

	application, err := app.New(app.Options{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Publisher: publisher,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}
	if err := application.Start(); err != nil {
		return err
	}
	defer application.Stop()

	srvCfg := server.Config{
		StaticDir:  cfg.Web.Dir,
		Store:      st,
		Controller: application,
		Machine:    application.Machine(),
		Preview:    application.Canvas(),
		Plugins:    application.Plugins(),
		StreamFPS:  cfg.Loop.FPS,
		Log:        logging.Component(logger, "server"),
	}
	if provider != nil {
		srvCfg.Metrics = provider.Handler
	}
	if cfg.Web.Dir != "" {
		log.WithField("dir", cfg.Web.Dir).Info("serving static files")
	}
	srv := server.New(srvCfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.HTTP.Addr)
		cancel()
	}()

	if cfg.Tray.Enabled {
		runTray(ctx, cancel, application, cfg.HTTP.Addr, log)
	}

	<-ctx.Done()
	err = <-errCh
	log.Info("shutdown complete")
	return err
}

// runTray blocks on the tray event loop until the user quits or ctx ends.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App, addr string, log *logrus.Entry) {
	t := tray.New()
	stopWatch := t.Watch(a.Machine())
	defer stopWatch()

	t.OnSimulateCall(func() error {
		_, err := a.StartCall()
		return err
	})
	t.OnOpen(func() {
		if err := openBrowser(previewURL(addr)); err != nil {
			log.WithError(err).Warn("open browser")
		}
	})
	t.OnQuit(cancel)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

func previewURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and the data directory.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	dataWebDir := filepath.Join(config.DataDir(), "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}
	return ""
}
