package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/luispater/idleClickerBot/internal/api"
	"github.com/luispater/idleClickerBot/internal/browser/chrome"
	"github.com/luispater/idleClickerBot/internal/config"
	"github.com/luispater/idleClickerBot/internal/game"
	"github.com/luispater/idleClickerBot/internal/logging"
	"github.com/luispater/idleClickerBot/internal/runner"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func init() {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	log.SetReportCaller(true)
	log.SetFormatter(&logging.LogFormatter{})
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath      string
		baseURL         string
		headless        bool
		debug           bool
		keepBrowserOpen bool
		apiPort         string
	)

	cmd := &cobra.Command{
		Use:           "idleClickerBot",
		Short:         "Plays an idle clicker game in Chrome: clicks the main target and buys upgrades on timers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				log.Errorf("Load configuration error: %v", err)
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("url") {
				cfg.BaseURL = baseURL
			}
			if flags.Changed("headless") {
				cfg.Headless = headless
			}
			if flags.Changed("debug") {
				cfg.Debug = debug
			}
			if flags.Changed("keep-browser-open") {
				cfg.KeepBrowserOpen = keepBrowserOpen
			}
			if flags.Changed("api-port") {
				cfg.ApiPort = apiPort
			}

			if err = cfg.Validate(); err != nil {
				log.Errorf("Invalid configuration in %s: %v", configPath, err)
				return err
			}

			logFile := logging.Setup(cfg)
			defer func() {
				_ = logFile.Close()
			}()

			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "path to the YAML configuration file")
	flags.StringVar(&baseURL, "url", "", "game page to open (overrides base-url)")
	flags.BoolVar(&headless, "headless", false, "run Chrome without a window")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	flags.BoolVar(&keepBrowserOpen, "keep-browser-open", false, "leave the browser open on shutdown until it is closed by hand")
	flags.StringVar(&apiPort, "api-port", "", "serve the status API on this port")
	return cmd
}

func run(parent context.Context, cfg *config.AppConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	session := uuid.NewString()
	log.WithField("session", session).Info("Starting Idle Clicker Bot...")

	manager, err := chrome.NewManager(cfg)
	if err != nil {
		log.Errorf("Critical error during bot execution: %v", err)
		return err
	}
	if err = manager.LaunchBrowserAndContext(); err != nil {
		log.Errorf("Critical error during bot execution: %v", err)
		log.Info("Bot execution finished.")
		return err
	}
	disconnected := manager.Disconnected()

	page, err := manager.NewPage()
	if err != nil {
		log.Errorf("Critical error during bot execution: %v", err)
		_ = manager.Close()
		log.Info("Bot execution finished.")
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := runner.NewScheduler(context.Background())
	controller, err := game.NewController(cfg, page, scheduler, game.WithStateStore(page))
	if err != nil {
		log.Errorf("Critical error during bot execution: %v", err)
		_ = manager.Close()
		return err
	}

	if err = controller.Start(ctx); err != nil {
		log.Warn("Automation loops are not running. Close the browser window to stop.")
	}

	var apiServer *api.Server
	if cfg.ApiPort != "" {
		apiServer = api.NewServer(&api.ServerConfig{
			Port:      cfg.ApiPort,
			Debug:     cfg.Debug,
			Session:   session,
			StartedAt: time.Now(),
			Scheduler: scheduler,
		})
		go func() {
			log.Infof("Starting status API on port %s", cfg.ApiPort)
			if errStart := apiServer.Start(); errStart != nil {
				log.Errorf("Status API failed: %v", errStart)
			}
		}()
	}

	log.Info("Bot is running. Close the browser window to stop.")

	browserGone := false
	select {
	case <-disconnected:
		browserGone = true
		log.Info("Browser closed, shutting down bot.")
	case <-ctx.Done():
		log.Info("Received shutdown signal, shutting down bot.")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	controller.Stop(shutdownCtx)
	if err = scheduler.StopContext(shutdownCtx); err != nil {
		log.Warnf("Runners did not finish before shutdown timeout: %v", err)
	}

	if apiServer != nil {
		if err = apiServer.Stop(shutdownCtx); err != nil {
			log.Debugf("Error stopping status API: %v", err)
		}
	}

	if !browserGone {
		if cfg.KeepBrowserOpen {
			fmt.Println("Automation stopped. The browser stays open; close it (or press Ctrl+C again) to exit.")
			<-disconnected
		} else if err = manager.Close(); err != nil {
			log.Debugf("Error closing browser: %v", err)
		}
	} else {
		_ = manager.Close()
	}

	log.Info("Bot execution finished.")
	return nil
}
