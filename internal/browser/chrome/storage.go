package chrome

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/domstorage"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/luispater/idleClickerBot/internal/browser"
)

// Snapshot captures the cookies of the tab and the localStorage of the origin
// it was last navigated to.
func (p *Page) Snapshot(ctx context.Context) (*browser.State, error) {
	storageID, err := localStorageID(p.URL())
	if err != nil {
		return nil, err
	}

	var cookies []*network.Cookie
	var items []domstorage.Item
	err = p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var errGetCookies error
		cookies, errGetCookies = network.GetCookies().Do(ctx)
		if errGetCookies != nil {
			return fmt.Errorf("failed to get cookies: %w", errGetCookies)
		}
		var errGetItems error
		items, errGetItems = domstorage.GetDOMStorageItems(storageID).Do(ctx)
		if errGetItems != nil {
			return fmt.Errorf("failed to get localStorage: %w", errGetItems)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}

	state := &browser.State{
		Cookies:      fromNetworkCookies(cookies),
		LocalStorage: make(map[string]string, len(items)),
	}
	for _, item := range items {
		if len(item) == 2 {
			state.LocalStorage[item[0]] = item[1]
		}
	}
	return state, nil
}

// Restore writes cookies and localStorage back. The page must already have
// been navigated to the origin the state belongs to.
func (p *Page) Restore(ctx context.Context, state *browser.State) error {
	if state.Empty() {
		return nil
	}
	storageID, err := localStorageID(p.URL())
	if err != nil {
		return err
	}

	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if len(state.Cookies) > 0 {
			if errSetCookies := network.SetCookies(toCookieParams(state.Cookies)).Do(ctx); errSetCookies != nil {
				return fmt.Errorf("failed to set cookies: %w", errSetCookies)
			}
		}
		for key, value := range state.LocalStorage {
			if errSetItem := domstorage.SetDOMStorageItem(storageID, key, value).Do(ctx); errSetItem != nil {
				return fmt.Errorf("failed to set localStorage %s: %w", key, errSetItem)
			}
		}
		return nil
	}))
}

func localStorageID(pageURL string) (*domstorage.StorageID, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("page has not been navigated yet")
	}
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &domstorage.StorageID{
		SecurityOrigin: fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host),
		IsLocalStorage: true,
	}, nil
}

func fromNetworkCookies(cookies []*network.Cookie) []browser.Cookie {
	out := make([]browser.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, browser.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return out
}

func toCookieParams(cookies []browser.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		// session cookies carry a non-positive expiry
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return params
}
