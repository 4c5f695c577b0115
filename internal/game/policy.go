package game

import (
	"fmt"

	"github.com/luispater/idleClickerBot/internal/browser"
)

// PurchasePolicy picks which of the currently enabled products to buy. The
// candidates are in document order and never empty.
type PurchasePolicy interface {
	Name() string
	Choose(candidates []browser.Element) browser.Element
}

// FirstEnabled buys the first enabled product in document order, with no price
// comparison.
type FirstEnabled struct{}

func (FirstEnabled) Name() string { return "first" }

func (FirstEnabled) Choose(candidates []browser.Element) browser.Element {
	return candidates[0]
}

// LastEnabled buys the last enabled product. On pages listing products by
// ascending price this is the most expensive affordable one.
type LastEnabled struct{}

func (LastEnabled) Name() string { return "last" }

func (LastEnabled) Choose(candidates []browser.Element) browser.Element {
	return candidates[len(candidates)-1]
}

func PolicyByName(name string) (PurchasePolicy, error) {
	switch name {
	case "first":
		return FirstEnabled{}, nil
	case "last":
		return LastEnabled{}, nil
	}
	return nil, fmt.Errorf("unknown purchase strategy %q", name)
}
