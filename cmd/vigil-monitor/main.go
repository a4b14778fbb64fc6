// Command vigil-monitor watches the driver through a local camera, shows the
// alert level in the system tray and sounds the alarm. It also serves the
// HTTP API so the dashboard can follow the local session.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/vigil/internal/app"
	"github.com/ayusman/vigil/internal/capture"
	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/features"
	"github.com/ayusman/vigil/internal/logging"
	"github.com/ayusman/vigil/internal/server"
	"github.com/ayusman/vigil/internal/server/api"
	"github.com/ayusman/vigil/internal/session"
	"github.com/ayusman/vigil/internal/store"
	"github.com/ayusman/vigil/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vigil-monitor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "vigil-monitor", cfg.LogFile)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if err := features.ValidateLayout(cfg.FaceLandmarkCount); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(filepath.Join(cfg.DataDir, "vigil.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// The local session runs with the default profile when one is set.
	th, err := api.NewProfileHandler(st, cfg.Thresholds).Resolve("")
	if err != nil {
		logger.Warn("default profile unusable, using configured thresholds", zap.Error(err))
	} else {
		cfg.Thresholds = th
	}

	stack := app.NewStack(cfg, app.NewDetector(cfg, logger), logger)
	defer stack.Close()

	t := tray.New()
	monitor := app.New(app.Config{
		Camera:   capture.NewCamera(cfg.CameraID),
		Pipeline: stack.Pipeline,
		FPS:      cfg.FPS,
		Logger:   logger,
		OnResult: func(res session.Result) {
			t.Update(res)
			if rem := res.EyesClosedRemaining(cfg.Thresholds.EyesClosedTime); rem > 0 {
				logger.Debug("eyes closed", zap.Duration("remaining", rem))
			}
		},
	})

	srv := server.New(server.Config{
		Store:    st,
		Pipeline: stack.Pipeline,
		Metrics:  stack.Metrics,
		Logger:   logger,
	}).HTTPServer(cfg.HTTPAddr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dashboard server failed", zap.Error(err))
		}
	}()

	if err := monitor.Start(); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	logger.Info("monitoring", zap.Int("camera", cfg.CameraID), zap.Int("fps", cfg.FPS))

	t.OnToggle(monitor.SetEnabled)
	t.OnDashboard(func() {
		if err := openBrowser(dashboardURL(cfg.HTTPAddr)); err != nil {
			logger.Warn("open dashboard", zap.Error(err))
		}
	})
	t.OnQuit(func() { logger.Info("quit requested") })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	// Blocks on the main thread until the tray quits.
	t.Run()

	monitor.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dashboard shutdown", zap.Error(err))
	}
	return nil
}

func dashboardURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
