package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luispater/idleClickerBot/internal/browser"
)

type fakeElement struct {
	page     *fakePage
	name     string
	clickErr error
}

func (e *fakeElement) Click(ctx context.Context) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.page.events = append(e.page.events, "click:"+e.name)
	if e.clickErr != nil {
		return e.clickErr
	}
	e.page.clicks[e.name]++
	return nil
}

func (e *fakeElement) Describe() string {
	return e.name
}

// fakePage is an in-memory page. Elements are registered per selector in
// document order; a selector can be made to appear only after a number of
// queries.
type fakePage struct {
	mu          sync.Mutex
	navigateErr error
	elements    map[string][]*fakeElement
	appearAfter map[string]int
	queryErr    map[string]error
	queries     map[string]int
	clicks      map[string]int
	navigations []string
	events      []string
}

func newFakePage() *fakePage {
	return &fakePage{
		elements:    make(map[string][]*fakeElement),
		appearAfter: make(map[string]int),
		queryErr:    make(map[string]error),
		queries:     make(map[string]int),
		clicks:      make(map[string]int),
	}
}

func (p *fakePage) add(selector string, names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, name := range names {
		p.elements[selector] = append(p.elements[selector], &fakeElement{page: p, name: name})
	}
}

// remove drops the elements of selector, as a click that hides them would.
func (p *fakePage) remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "navigate:"+url)
	if p.navigateErr != nil {
		return p.navigateErr
	}
	p.navigations = append(p.navigations, url)
	return nil
}

func (p *fakePage) lookup(selector string) ([]*fakeElement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries[selector]++
	p.events = append(p.events, "query:"+selector)
	if err := p.queryErr[selector]; err != nil {
		return nil, err
	}
	if p.queries[selector] <= p.appearAfter[selector] {
		return nil, nil
	}
	return p.elements[selector], nil
}

func (p *fakePage) QuerySelector(ctx context.Context, selector string) (browser.Element, error) {
	found, err := p.lookup(selector)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (p *fakePage) QuerySelectorAll(ctx context.Context, selector string) ([]browser.Element, error) {
	found, err := p.lookup(selector)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, len(found))
	for _, e := range found {
		out = append(out, e)
	}
	return out, nil
}

func (p *fakePage) clickCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks[name]
}

func (p *fakePage) queryCount(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries[selector]
}

func (p *fakePage) eventLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type fakeStore struct {
	mu        sync.Mutex
	state     *browser.State
	restored  *browser.State
	snapshots int
	err       error
}

func (s *fakeStore) Snapshot(ctx context.Context) (*browser.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.snapshots++
	return s.state, nil
}

func (s *fakeStore) Restore(ctx context.Context, state *browser.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.restored = state
	return nil
}

var errUnreachable = errors.New("net::ERR_NAME_NOT_RESOLVED")

func indexOf(events []string, prefix string) int {
	for i, e := range events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			return i
		}
	}
	return -1
}

func productNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("product%d", i)
	}
	return names
}
