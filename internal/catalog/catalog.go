// Package catalog holds the static choices offered by the installer:
// languages, keyboard layouts and timezones.
package catalog

import (
	"strings"

	"github.com/twinaos/installer/internal/wizard"
)

type Language struct {
	Code   string
	Name   string
	Native string
}

var Languages = []Language{
	{Code: "en", Name: "English", Native: "English"},
	{Code: "es", Name: "Spanish", Native: "Español"},
	{Code: "fr", Name: "French", Native: "Français"},
	{Code: "de", Name: "German", Native: "Deutsch"},
	{Code: "it", Name: "Italian", Native: "Italiano"},
	{Code: "pt", Name: "Portuguese", Native: "Português"},
	{Code: "ru", Name: "Russian", Native: "Русский"},
	{Code: "ja", Name: "Japanese", Native: "日本語"},
	{Code: "ko", Name: "Korean", Native: "한국어"},
	{Code: "zh", Name: "Chinese", Native: "中文"},
}

type Layout struct {
	Code string
	Name string
}

var Layouts = []Layout{
	{Code: "us", Name: "US - English (US)"},
	{Code: "gb", Name: "GB - English (UK)"},
	{Code: "de", Name: "DE - German"},
	{Code: "fr", Name: "FR - French"},
	{Code: "es", Name: "ES - Spanish"},
	{Code: "it", Name: "IT - Italian"},
	{Code: "pt", Name: "PT - Portuguese"},
	{Code: "ru", Name: "RU - Russian"},
	{Code: "jp", Name: "JP - Japanese"},
	{Code: "kr", Name: "KR - Korean"},
}

var Timezones = []string{
	"UTC",
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
	"Europe/London",
	"Europe/Paris",
	"Europe/Berlin",
	"Europe/Rome",
	"Europe/Madrid",
	"Asia/Tokyo",
	"Asia/Seoul",
	"Asia/Shanghai",
	"Asia/Kolkata",
	"Australia/Sydney",
}

// TimezoneLabel renders a zone id for display.
// Example: "America/New_York" -> "America / New York"
func TimezoneLabel(tz string) string {
	return strings.ReplaceAll(strings.ReplaceAll(tz, "_", " "), "/", " / ")
}

func LanguageItems() []wizard.Item {
	items := make([]wizard.Item, len(Languages))
	for i, l := range Languages {
		items[i] = wizard.Item{ID: l.Code, Label: l.Native, Detail: l.Name}
	}
	return items
}

func LayoutItems() []wizard.Item {
	items := make([]wizard.Item, len(Layouts))
	for i, l := range Layouts {
		items[i] = wizard.Item{ID: l.Code, Label: l.Name, Detail: strings.ToUpper(l.Code)}
	}
	return items
}

func TimezoneItems() []wizard.Item {
	items := make([]wizard.Item, len(Timezones))
	for i, tz := range Timezones {
		items[i] = wizard.Item{ID: tz, Label: TimezoneLabel(tz)}
	}
	return items
}

// Filter keeps the items whose id, label or detail contains query, ignoring
// case. An empty query keeps everything.
func Filter(items []wizard.Item, query string) []wizard.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	var out []wizard.Item
	for _, it := range items {
		hay := strings.ToLower(it.ID + " " + it.Label + " " + it.Detail)
		if strings.Contains(hay, q) {
			out = append(out, it)
		}
	}
	return out
}
