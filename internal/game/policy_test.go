package game

import (
	"testing"

	"github.com/luispater/idleClickerBot/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicies(t *testing.T) {
	page := newFakePage()
	candidates := []browser.Element{
		&fakeElement{page: page, name: "cursor"},
		&fakeElement{page: page, name: "grandma"},
		&fakeElement{page: page, name: "farm"},
	}

	assert.Equal(t, "cursor", FirstEnabled{}.Choose(candidates).Describe())
	assert.Equal(t, "farm", LastEnabled{}.Choose(candidates).Describe())

	single := candidates[:1]
	assert.Equal(t, "cursor", LastEnabled{}.Choose(single).Describe())
}

func TestPolicyByName(t *testing.T) {
	for name, want := range map[string]string{"first": "first", "last": "last"} {
		policy, err := PolicyByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, policy.Name())
	}

	for _, name := range []string{"", "cheapest"} {
		_, err := PolicyByName(name)
		assert.Error(t, err, "strategy %q", name)
	}
}
