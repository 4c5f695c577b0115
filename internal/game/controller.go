// Package game drives the idle clicker page: startup sequencing and the
// periodic click and purchase actions.
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/luispater/idleClickerBot/internal/browser"
	"github.com/luispater/idleClickerBot/internal/config"
	"github.com/luispater/idleClickerBot/internal/runner"
	log "github.com/sirupsen/logrus"
)

const (
	TaskClickPrimary = "click-primary"
	TaskBuyProduct   = "buy-product"
	TaskSaveState    = "save-state"
)

// Controller owns the startup sequence. The page handle is shared with the
// actions it schedules.
type Controller struct {
	cfg       *config.AppConfig
	page      browser.Page
	store     browser.StateStore
	scheduler *runner.Scheduler
	policy    PurchasePolicy
	log       *log.Entry
	handles   []*runner.Handle
}

type Option func(*Controller)

// WithStateStore enables save and restore of the game state through store.
// It has no effect unless state-file is configured.
func WithStateStore(store browser.StateStore) Option {
	return func(c *Controller) {
		c.store = store
	}
}

func WithPolicy(policy PurchasePolicy) Option {
	return func(c *Controller) {
		c.policy = policy
	}
}

func NewController(cfg *config.AppConfig, page browser.Page, scheduler *runner.Scheduler, opts ...Option) (*Controller, error) {
	if cfg == nil || page == nil || scheduler == nil {
		return nil, errors.New("game: config, page and scheduler are required")
	}
	policy, err := PolicyByName(cfg.PurchaseStrategy)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:       cfg,
		page:      page,
		scheduler: scheduler,
		policy:    policy,
		log:       log.WithField("component", "game"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start navigates to the game, sets the language and registers the periodic
// actions. It returns as soon as they are registered. When navigation fails
// nothing is registered.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Info("Starting the game...")

	if err := c.page.Navigate(ctx, c.cfg.BaseURL); err != nil {
		c.log.WithError(err).Errorf("Error during game start: could not open %s", c.cfg.BaseURL)
		return fmt.Errorf("start game: %w", err)
	}
	c.log.Infof("Navigated to %s", c.cfg.BaseURL)

	if err := c.restoreState(ctx); err != nil {
		c.log.WithError(err).Errorf("Error during game start: could not reload %s", c.cfg.BaseURL)
		return fmt.Errorf("start game: %w", err)
	}

	if c.cfg.SetLanguage {
		c.SetGameLanguage(ctx)
	}

	tasks := []runner.Task{
		{
			Name:         TaskClickPrimary,
			Interval:     c.cfg.Intervals.Click,
			Timeout:      c.cfg.Intervals.TickTimeout,
			FailureLevel: log.WarnLevel,
			Action:       c.ClickPrimary,
		},
		{
			Name:         TaskBuyProduct,
			Interval:     c.cfg.Intervals.Purchase,
			Timeout:      c.cfg.Intervals.TickTimeout,
			FailureLevel: log.ErrorLevel,
			Action:       c.BuyProduct,
		},
	}
	if c.persistent() {
		tasks = append(tasks, runner.Task{
			Name:         TaskSaveState,
			Interval:     c.cfg.Intervals.SaveState,
			Timeout:      c.cfg.Intervals.TickTimeout,
			FailureLevel: log.WarnLevel,
			Action:       c.SaveState,
		})
	}

	for _, task := range tasks {
		h, err := c.scheduler.Schedule(task)
		if err != nil {
			c.log.WithError(err).Errorf("Could not schedule %s", task.Name)
			return fmt.Errorf("schedule %s: %w", task.Name, err)
		}
		c.handles = append(c.handles, h)
	}

	c.log.Infof("Game started and automation loops initiated (purchase strategy: %s).", c.policy.Name())
	return nil
}

// SetGameLanguage clicks the language button when it is present. Absence is
// not an error and is not retried.
func (c *Controller) SetGameLanguage(ctx context.Context) {
	c.log.Info("Setting language...")

	button, err := c.page.QuerySelector(ctx, c.cfg.Selectors.LanguageButton)
	if err != nil {
		c.log.WithError(err).Error("Error setting language")
		return
	}
	if button == nil {
		c.log.WithField("selector", c.cfg.Selectors.LanguageButton).Warn("Language selector not found.")
		return
	}
	if err = button.Click(ctx); err != nil {
		c.log.WithError(err).Error("Error setting language")
		return
	}
	c.log.Info("Language set.")
}

// ClickPrimary clicks the primary target once if it is on the page.
func (c *Controller) ClickPrimary(ctx context.Context) runner.Result {
	target, err := c.page.QuerySelector(ctx, c.cfg.Selectors.PrimaryTarget)
	if err != nil {
		return runner.Fail(err)
	}
	if target == nil {
		// page still loading or layout changed
		return runner.Skip("primary target not found")
	}
	if err = target.Click(ctx); err != nil {
		return runner.Fail(err)
	}
	return runner.Done("clicked")
}

// BuyProduct clicks the product chosen by the policy among the enabled ones.
func (c *Controller) BuyProduct(ctx context.Context) runner.Result {
	products, err := c.page.QuerySelectorAll(ctx, c.cfg.Selectors.Purchasable())
	if err != nil {
		return runner.Fail(err)
	}
	if len(products) == 0 {
		c.log.Info("No products available or enabled to buy at the moment.")
		return runner.Skip("no products available")
	}

	product := c.policy.Choose(products)
	if err = product.Click(ctx); err != nil {
		return runner.Fail(err)
	}
	c.log.Infof("Attempted to buy %s (%d enabled).", product.Describe(), len(products))
	return runner.Done(product.Describe())
}

// SaveState writes the current browser state to the state file.
func (c *Controller) SaveState(ctx context.Context) runner.Result {
	if !c.persistent() {
		return runner.Skip("state persistence disabled")
	}
	state, err := c.store.Snapshot(ctx)
	if err != nil {
		return runner.Fail(err)
	}
	if err = browser.SaveState(c.cfg.StateFile, state); err != nil {
		return runner.Fail(err)
	}
	c.log.Debugf("State saved to %s", c.cfg.StateFile)
	return runner.Done(c.cfg.StateFile)
}

// Stop cancels the actions registered by Start, waits for their last tick and
// writes the state one final time.
func (c *Controller) Stop(ctx context.Context) {
	for _, h := range c.handles {
		h.Cancel()
	}
	for _, h := range c.handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			c.log.Warn("Timed out waiting for automation loops to stop")
			return
		}
	}
	if len(c.handles) > 0 && c.persistent() {
		if res := c.SaveState(ctx); res.Outcome == runner.Failed {
			c.log.WithError(res.Err).Warn("Final state save failed")
		}
	}
	c.handles = nil
}

func (c *Controller) persistent() bool {
	return c.store != nil && c.cfg.StateFile != ""
}

// restoreState loads the state file into the page and reloads so the game
// picks up its save.
func (c *Controller) restoreState(ctx context.Context) error {
	if !c.persistent() {
		return nil
	}
	state, err := browser.LoadState(c.cfg.StateFile)
	if err != nil {
		c.log.WithError(err).Warn("Ignoring unreadable state file")
		return nil
	}
	if state.Empty() {
		c.log.Infof("No saved state at %s, starting fresh.", c.cfg.StateFile)
		return nil
	}
	if err = c.store.Restore(ctx, state); err != nil {
		c.log.WithError(err).Warn("Could not restore saved state")
		return nil
	}
	c.log.Infof("Restored saved state from %s, reloading.", c.cfg.StateFile)
	return c.page.Navigate(ctx, c.cfg.BaseURL)
}
