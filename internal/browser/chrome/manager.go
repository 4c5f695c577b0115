package chrome

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/luispater/idleClickerBot/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Manager manages a Chrome browser instance and its contexts.
type Manager struct {
	appConfig     *config.AppConfig
	allocator     context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	execPath      string
}

// NewManager creates a new Chromedp Manager instance.
// It initializes the allocator context but does not launch the browser yet.
func NewManager(appConfig *config.AppConfig) (*Manager, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("appConfig cannot be nil")
	}

	execPath := appConfig.Browser.ExecPath
	if execPath == "" {
		execPath = os.Getenv("CHROME_BIN")
		if execPath == "" {
			log.Debug("Chrome path not specified in config or CHROME_BIN env, will attempt auto-detection.")
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(appConfig, execPath)...)

	return &Manager{
		appConfig:   appConfig,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		execPath:    execPath,
	}, nil
}

func allocatorOptions(appConfig *config.AppConfig, execPath string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		// the game keeps ticking in a background tab
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	}

	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	if appConfig.Headless {
		opts = append(opts, chromedp.Headless)
		opts = append(opts, chromedp.DisableGPU)
		opts = append(opts, chromedp.WindowSize(1920, 1080))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if appConfig.Browser.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(appConfig.Browser.UserDataDir))
	}

	if appConfig.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(appConfig.Browser.UserAgent))
	}

	for _, arg := range appConfig.Browser.Args {
		if name, value, ok := parseFlag(arg); ok {
			opts = append(opts, chromedp.Flag(name, value))
		}
	}
	return opts
}

// parseFlag turns "--name=value" or "--name" into a chromedp flag.
func parseFlag(arg string) (string, interface{}, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", nil, false
	}
	parts := strings.SplitN(arg, "=", 2)
	name := strings.TrimPrefix(parts[0], "--")
	if name == "" {
		return "", nil, false
	}
	if len(parts) == 2 {
		return name, parts[1], true
	}
	return name, true, true
}

// LaunchBrowserAndContext launches the browser and creates a new browser context.
func (m *Manager) LaunchBrowserAndContext() error {
	if m.allocator == nil {
		return fmt.Errorf("manager not properly initialized, allocator is nil")
	}

	browserCtx, browserCancel := chromedp.NewContext(
		m.allocator,
		chromedp.WithLogf(log.Debugf),
		chromedp.WithErrorf(log.Debugf),
	)
	m.browserCtx = browserCtx
	m.browserCancel = browserCancel

	if err := chromedp.Run(m.browserCtx); err != nil {
		_ = m.Close()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	log.Infof("Chrome launched successfully with path: %q", m.execPath)
	return nil
}

// NewPage opens a new tab. Clicks on it are limited to the configured
// click-rate.
func (m *Manager) NewPage() (*Page, error) {
	if m.browserCtx == nil {
		return nil, fmt.Errorf("browser context not initialized. Call LaunchBrowserAndContext first")
	}

	var newTargetID target.ID
	err := chromedp.Run(m.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		newTargetID, err = target.CreateTarget("about:blank").Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create new target (tab): %w", err)
	}

	pageCtx, pageCancel := chromedp.NewContext(m.browserCtx, chromedp.WithTargetID(newTargetID))
	// attach to the tab so the target is known before the first navigation
	if err = chromedp.Run(pageCtx); err != nil {
		pageCancel()
		return nil, fmt.Errorf("failed to attach to target %s: %w", newTargetID, err)
	}

	log.Debugf("New Chrome page (targetID: %s) created.", newTargetID)
	return newPage(pageCtx, pageCancel, newLimiter(m.appConfig.ClickRate), m.appConfig.NavigationTimeout, lifecycleEventFor(m.appConfig.WaitUntil)), nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Disconnected is closed when the browser session ends, either because the
// user closed the browser or because the manager was closed.
func (m *Manager) Disconnected() <-chan struct{} {
	done := make(chan struct{})
	if m.browserCtx == nil {
		close(done)
		return done
	}

	browserCtx := m.browserCtx
	var lost <-chan struct{}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
		lost = c.Browser.LostConnection
	}
	go func() {
		defer close(done)
		select {
		case <-browserCtx.Done():
		case <-lost:
		}
	}()
	return done
}

// Close shuts the browser down. It is safe to call more than once.
func (m *Manager) Close() error {
	if m.browserCancel != nil {
		log.Debug("Cancelling Chromedp browser context...")
		m.browserCancel()
		m.browserCancel = nil
		m.browserCtx = nil
		log.Debug("Chromedp browser context cancelled.")
	}

	if m.allocCancel != nil {
		log.Debug("Cancelling Chromedp allocator context...")
		m.allocCancel()
		m.allocCancel = nil
		m.allocator = nil
		log.Info("Browser process shut down.")
	}
	return nil
}
