package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/wizard"
)

func TestItemsAreUnique(t *testing.T) {
	for name, items := range map[string]int{
		"languages": len(LanguageItems()),
		"layouts":   len(LayoutItems()),
		"timezones": len(TimezoneItems()),
	} {
		require.NotZero(t, items, name)
	}
	for _, list := range [][]string{ids(LanguageItems()), ids(LayoutItems()), ids(TimezoneItems())} {
		seen := map[string]bool{}
		for _, id := range list {
			require.False(t, seen[id], "duplicate %s", id)
			seen[id] = true
		}
	}
	require.Len(t, Layouts, 10)
	require.Len(t, Timezones, 15)
}

func TestTimezoneLabel(t *testing.T) {
	require.Equal(t, "America / New York", TimezoneLabel("America/New_York"))
	require.Equal(t, "UTC", TimezoneLabel("UTC"))
}

func TestFilter(t *testing.T) {
	tz := TimezoneItems()
	require.Len(t, Filter(tz, ""), len(tz))

	got := Filter(tz, "new york")
	require.Len(t, got, 1)
	require.Equal(t, "America/New_York", got[0].ID)

	require.Len(t, Filter(tz, "EUROPE"), 5)
	require.Empty(t, Filter(tz, "Mars"))

	langs := Filter(LanguageItems(), "deu")
	require.Len(t, langs, 1)
	require.Equal(t, "de", langs[0].ID)
}

func ids(items []wizard.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
