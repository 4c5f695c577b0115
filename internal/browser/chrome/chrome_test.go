package chrome

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/luispater/idleClickerBot/internal/browser"
	"github.com/luispater/idleClickerBot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		arg       string
		wantName  string
		wantValue interface{}
		wantOK    bool
	}{
		{"--no-sandbox", "no-sandbox", true, true},
		{"--window-size=1280,800", "window-size", "1280,800", true},
		{"mute-audio", "mute-audio", true, true},
		{"  ", "", nil, false},
		{"--", "", nil, false},
	}

	for _, tt := range tests {
		name, value, ok := parseFlag(tt.arg)
		assert.Equal(t, tt.wantOK, ok, tt.arg)
		assert.Equal(t, tt.wantName, name, tt.arg)
		assert.Equal(t, tt.wantValue, value, tt.arg)
	}
}

func TestAllocatorOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	base := len(allocatorOptions(cfg, ""))

	cfg.Headless = true
	cfg.Browser.UserDataDir = "/tmp/profile"
	cfg.Browser.UserAgent = "bot"
	withExtras := allocatorOptions(cfg, "/usr/bin/chromium")

	// headless adds three options in place of one, plus exec path, profile and UA
	assert.Equal(t, base+5, len(withExtras))
}

func TestNewManagerRequiresConfig(t *testing.T) {
	_, err := NewManager(nil)
	assert.Error(t, err)
}

func TestManagerWithoutLaunch(t *testing.T) {
	m, err := NewManager(config.DefaultConfig())
	require.NoError(t, err)

	_, err = m.NewPage()
	assert.Error(t, err)

	select {
	case <-m.Disconnected():
	case <-time.After(time.Second):
		t.Fatal("Disconnected should be closed when no browser was launched")
	}

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestNewLimiter(t *testing.T) {
	unlimited := newLimiter(0)
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.Allow())
	}

	limited := newLimiter(1)
	assert.True(t, limited.Allow())
	assert.False(t, limited.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limited.Wait(ctx))
}

func TestDescribeNode(t *testing.T) {
	n := &cdp.Node{
		NodeName:   "DIV",
		Attributes: []string{"id", "product3", "class", "product unlocked enabled"},
	}
	assert.Equal(t, "div#product3.product.unlocked.enabled", describeNode(n))
	assert.Equal(t, "<nil>", describeNode(nil))
}

func TestLocalStorageID(t *testing.T) {
	id, err := localStorageID("https://orteil.dashnet.org/cookieclicker/?lang=en")
	require.NoError(t, err)
	assert.Equal(t, "https://orteil.dashnet.org", id.SecurityOrigin)
	assert.True(t, id.IsLocalStorage)

	_, err = localStorageID("")
	assert.Error(t, err)
}

func TestCookieConversion(t *testing.T) {
	cookies := fromNetworkCookies([]*network.Cookie{
		{Name: "a", Value: "1", Domain: "example-game.test", Path: "/", Expires: 1893456000, Secure: true},
		{Name: "session", Value: "2", Domain: "example-game.test", Path: "/", Expires: -1},
	})
	require.Len(t, cookies, 2)
	assert.Equal(t, browser.Cookie{Name: "a", Value: "1", Domain: "example-game.test", Path: "/", Expires: 1893456000, Secure: true}, cookies[0])

	params := toCookieParams(cookies)
	require.Len(t, params, 2)
	require.NotNil(t, params[0].Expires)
	assert.Equal(t, int64(1893456000), params[0].Expires.Time().Unix())
	assert.Nil(t, params[1].Expires)
	assert.True(t, params[0].Secure)
}

func TestPageURLBeforeNavigation(t *testing.T) {
	p := newPage(context.Background(), func() {}, newLimiter(0), 0, networkAlmostIdleEvent)
	assert.Empty(t, p.URL())

	_, err := p.Snapshot(context.Background())
	assert.Error(t, err)
	assert.NoError(t, p.Restore(context.Background(), &browser.State{}))
}

func TestLifecycleEventFor(t *testing.T) {
	assert.Equal(t, "networkAlmostIdle", lifecycleEventFor("almost-idle"))
	assert.Equal(t, "networkAlmostIdle", lifecycleEventFor(""))
	assert.Equal(t, "networkIdle", lifecycleEventFor("idle"))
}

func TestIdleWatcher(t *testing.T) {
	const main, child = cdp.FrameID("MAIN"), cdp.FrameID("IFRAME")
	lifecycle := func(frame cdp.FrameID, name string) *cdppage.EventLifecycleEvent {
		return &cdppage.EventLifecycleEvent{FrameID: frame, Name: name}
	}

	tests := []struct {
		name   string
		event  string
		events []interface{}
		want   []bool
	}{
		{
			name:   "other frame goes idle",
			event:  networkAlmostIdleEvent,
			events: []interface{}{lifecycle(child, "init"), lifecycle(child, "networkAlmostIdle")},
			want:   []bool{false, false},
		},
		{
			name:   "idle before init is stale",
			event:  networkAlmostIdleEvent,
			events: []interface{}{lifecycle(main, "networkAlmostIdle"), lifecycle(main, "init")},
			want:   []bool{false, false},
		},
		{
			name:   "init then idle",
			event:  networkAlmostIdleEvent,
			events: []interface{}{lifecycle(main, "init"), lifecycle(main, "load"), lifecycle(main, "networkAlmostIdle")},
			want:   []bool{false, false, true},
		},
		{
			name:  "duplicate idle fires once",
			event: networkAlmostIdleEvent,
			events: []interface{}{
				lifecycle(main, "init"), lifecycle(main, "networkAlmostIdle"),
				lifecycle(main, "init"), lifecycle(main, "networkAlmostIdle"),
			},
			want: []bool{false, true, false, false},
		},
		{
			name:   "almost idle does not satisfy strict idle",
			event:  networkIdleEvent,
			events: []interface{}{lifecycle(main, "init"), lifecycle(main, "networkAlmostIdle"), lifecycle(main, "networkIdle")},
			want:   []bool{false, false, true},
		},
		{
			name:   "unrelated events",
			event:  networkAlmostIdleEvent,
			events: []interface{}{&cdppage.EventLoadEventFired{}, lifecycle(main, "init"), &network.EventLoadingFinished{}},
			want:   []bool{false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &idleWatcher{mainFrame: main, event: tt.event}
			got := make([]bool, 0, len(tt.events))
			for _, ev := range tt.events {
				got = append(got, w.handle(ev))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
