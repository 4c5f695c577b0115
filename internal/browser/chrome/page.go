package chrome

import (
	"context"
	"fmt"
	"strings"
	"sync"
		"time"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/luispater/idleClickerBot/internal/browser"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	networkAlmostIdleEvent = "networkAlmostIdle"
	networkIdleEvent       = "networkIdle"
)

// lifecycleEventFor maps the wait-until setting to the Chrome lifecycle event
// that ends a navigation. "almost-idle" allows two open connections.
func lifecycleEventFor(waitUntil string) string {
	if waitUntil == "idle" {
		return networkIdleEvent
	}
	return networkAlmostIdleEvent
}

// idleWatcher follows the lifecycle events of one navigation. It reports the
// idle event of the main frame once, and only after that frame's document
// has started loading.
type idleWatcher struct {
	mainFrame cdp.FrameID
	event     string
	armed     bool
	fired     bool
}

func (w *idleWatcher) handle(ev interface{}) bool {
	e, ok := ev.(*cdppage.EventLifecycleEvent)
	if !ok || e.FrameID != w.mainFrame || w.fired {
		return false
	}
	switch e.Name {
	case "init":
		w.armed = true
	case w.event:
		if w.armed {
			w.fired = true
			return true
		}
	}
	return false
}

// Page is a single Chrome tab. Its methods may be called from several
// goroutines; chromedp serializes the underlying CDP commands.
type Page struct {
	ctx               context.Context
	cancel            context.CancelFunc
	limiter           *rate.Limiter
	navigationTimeout time.Duration
	idleEvent         string

	mu  sync.RWMutex
	url string
}

var (
	_ browser.Page       = (*Page)(nil)
	_ browser.StateStore = (*Page)(nil)
)

func newPage(ctx context.Context, cancel context.CancelFunc, limiter *rate.Limiter, navigationTimeout time.Duration, idleEvent string) *Page {
	return &Page{
		idleEvent:         idleEvent,
		ctx:               ctx,
		cancel:            cancel,
		limiter:           limiter,
		navigationTimeout: navigationTimeout,
	}
}

func (p *Page) GetContext() context.Context {
	return p.ctx
}

// URL is the last URL passed to Navigate.
func (p *Page) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

// run executes actions on the tab, aborting when either the tab or ctx ends.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the main frame to report the configured
// network idle event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.navigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.navigationTimeout)
		defer cancel()
	}

	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return fmt.Errorf("page is not attached to a target")
	}
	mainFrame := cdp.FrameID(c.Target.TargetID)

	listenCtx, stopListening := context.WithCancel(p.ctx)
	defer stopListening()

	idle := make(chan struct{})
	var mu sync.Mutex
	watcher := &idleWatcher{mainFrame: mainFrame, event: p.idleEvent}
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		mu.Lock()
		defer mu.Unlock()
		if watcher.handle(ev) {
			close(idle)
		}
	})

	p.mu.Lock()
	p.url = url
	p.mu.Unlock()

	if err := p.run(ctx, cdppage.SetLifecycleEventsEnabled(true), chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}

	select {
	case <-idle:
		log.Debugf("%s on %s", p.idleEvent, url)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for network idle on %s: %w", url, ctx.Err())
	case <-p.ctx.Done():
		return fmt.Errorf("wait for network idle on %s: %w", url, p.ctx.Err())
	}
}

func (p *Page) QuerySelector(ctx context.Context, selector string) (browser.Element, error) {
	var nodes []*cdp.Node
	// AtLeast(0) returns immediately instead of polling until the node shows up
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return &element{page: p, node: nodes[0]}, nil
}

func (p *Page) QuerySelectorAll(ctx context.Context, selector string) ([]browser.Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query all %s: %w", selector, err)
	}
	elements := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &element{page: p, node: n})
	}
	return elements, nil
}

// Close closes the tab.
func (p *Page) Close() {
	p.cancel()
}

type element struct {
	page *Page
	node *cdp.Node
}

func (e *element) Click(ctx context.Context) error {
	if err := e.page.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := e.page.run(ctx, chromedp.MouseClickNode(e.node)); err != nil {
		return fmt.Errorf("click %s: %w", e.Describe(), err)
	}
	return nil
}

func (e *element) Describe() string {
	return describeNode(e.node)
}

// describeNode renders a node roughly as a CSS selector: tag#id.class.
func describeNode(n *cdp.Node) string {
	if n == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(n.NodeName))
	if id := n.AttributeValue("id"); id != "" {
		b.WriteString("#" + id)
	}
	for _, class := range strings.Fields(n.AttributeValue("class")) {
		b.WriteString("." + class)
	}
	return b.String()
}
