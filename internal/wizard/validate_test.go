package wizard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/wizard"
)

func TestValidUsername(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ab1", true},
		{"ada", true},
		{"lovelace1815", true},
		{"Ab1", false},
		{"a1", false},
		{"1ab", false},
		{"ada-l", false},
		{"ada l", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, wizard.ValidUsername(tt.in))
		})
	}
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		pw    string
		score int
		label string
	}{
		{"", 0, "Weak"},
		{"abc", 25, "Fair"},
		{"abcdefgh", 50, "Good"},
		{"Abcdefgh", 75, "Strong"},
		{"Abcdefg1", 100, "Very Strong"},
		{"Abcdef1!", 100, "Very Strong"}, // five criteria, capped
		{"ABC1", 50, "Good"},
		{"!!!", 25, "Fair"},
		{"ééééééé!", 50, "Good"}, // eight runes, non-ASCII counts as symbol
	}
	for _, tt := range tests {
		t.Run(tt.pw, func(t *testing.T) {
			got := wizard.PasswordStrength(tt.pw)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.score >= 50, wizard.ValidPassword(tt.pw))
		})
	}
}

func TestPasswordStrength_MonotonicInCriteria(t *testing.T) {
	// Each step satisfies one more criterion than the previous one.
	ladder := []string{"", "a", "aB", "aB3", "aB3!", "aB3!aaaa"}
	prev := -1
	for _, pw := range ladder {
		score := wizard.PasswordStrength(pw).Score
		require.Contains(t, []int{0, 25, 50, 75, 100}, score)
		require.GreaterOrEqual(t, score, prev, "password %q", pw)
		prev = score
	}
	require.Equal(t, 100, prev)
}

func TestConfirmPassword(t *testing.T) {
	assert.Equal(t, wizard.ConfirmNeutral, wizard.ConfirmPassword("Secret#1", ""))
	assert.Equal(t, wizard.ConfirmNeutral, wizard.ConfirmPassword("", ""))
	assert.Equal(t, wizard.ConfirmMatch, wizard.ConfirmPassword("Secret#1", "Secret#1"))
	assert.Equal(t, wizard.ConfirmMismatch, wizard.ConfirmPassword("Secret#1", "Secret#2"))
	assert.Equal(t, "neutral", wizard.ConfirmNeutral.String())
}

func TestValidateStep(t *testing.T) {
	valid := wizard.UserFields{
		FullName: "Ada Lovelace",
		Username: "ada",
		Password: "Analytical#1",
		Confirm:  "Analytical#1",
		Hostname: "engine",
	}
	selected := map[wizard.StepID]wizard.Item{
		wizard.StepLanguage: {ID: "en"},
		wizard.StepKeyboard: {ID: "us"},
		wizard.StepTimezone: {ID: "UTC"},
		wizard.StepDisk:     {ID: "/dev/sda"},
	}

	for _, step := range []wizard.StepID{wizard.StepLanguage, wizard.StepKeyboard, wizard.StepTimezone, wizard.StepDisk} {
		assert.False(t, wizard.ValidateStep(step, wizard.FormSnapshot{}), "%s without selection", step)
		assert.True(t, wizard.ValidateStep(step, wizard.FormSnapshot{Selected: selected}), "%s with selection", step)
	}
	for _, step := range []wizard.StepID{wizard.StepWelcome, wizard.StepNetwork, wizard.StepSummary, wizard.StepProgress, wizard.StepComplete} {
		assert.True(t, wizard.ValidateStep(step, wizard.FormSnapshot{}), "%s is ungated", step)
	}

	assert.True(t, wizard.ValidateStep(wizard.StepUser, wizard.FormSnapshot{User: valid}))

	broken := map[string]func(u *wizard.UserFields){
		"blank full name":  func(u *wizard.UserFields) { u.FullName = "   " },
		"bad username":     func(u *wizard.UserFields) { u.Username = "Ada" },
		"weak password":    func(u *wizard.UserFields) { u.Password, u.Confirm = "abc", "abc" },
		"empty confirm":    func(u *wizard.UserFields) { u.Confirm = "" },
		"mismatch confirm": func(u *wizard.UserFields) { u.Confirm = "Analytical#2" },
		"blank hostname":   func(u *wizard.UserFields) { u.Hostname = "" },
		"padded username":  func(u *wizard.UserFields) { u.Username = " ada" },
		"shell hostname":   func(u *wizard.UserFields) { u.Hostname = "box; reboot" },
		"hyphen hostname":  func(u *wizard.UserFields) { u.Hostname = "-engine" },
		"long hostname":    func(u *wizard.UserFields) { u.Hostname = strings.Repeat("a", 64) },
	}
	for name, mutate := range broken {
		t.Run(name, func(t *testing.T) {
			u := valid
			mutate(&u)
			assert.False(t, wizard.ValidateStep(wizard.StepUser, wizard.FormSnapshot{User: u}))
		})
	}
}

func TestValidHostname(t *testing.T) {
	for _, ok := range []string{"engine", "twinaos-01", "A", strings.Repeat("a", 63)} {
		assert.True(t, wizard.ValidHostname(ok), ok)
	}
	for _, bad := range []string{"", "-box", "box-", "my box", "box.local", "box;id", "$(id)", "`id`", strings.Repeat("a", 64)} {
		assert.False(t, wizard.ValidHostname(bad), bad)
	}
}

func TestSuggestUsername(t *testing.T) {
	assert.Equal(t, "ada", wizard.SuggestUsername("Ada Lovelace"))
	assert.Equal(t, "zoe", wizard.SuggestUsername("Zoë Ünal"))
	assert.Equal(t, "grace", wizard.SuggestUsername("  Grace2 Hopper"))
	assert.Equal(t, "", wizard.SuggestUsername(""))
}

func TestExtract(t *testing.T) {
	snap := wizard.FormSnapshot{
		Selected: map[wizard.StepID]wizard.Item{
			wizard.StepLanguage: {ID: "de", Label: "Deutsch"},
			wizard.StepKeyboard: {ID: "de", Label: "DE - German"},
			wizard.StepTimezone: {ID: "Europe/Berlin"},
			wizard.StepDisk:     {ID: "/dev/sda", Label: "sda"},
		},
		User: wizard.UserFields{
			FullName: " Ada Lovelace ",
			Username: "ada",
			Password: " spaced pw ",
			Hostname: "engine ",
		},
		Partitioning: wizard.PartitionManual,
	}

	assert.Equal(t, wizard.Config{"language": "de", "languageName": "Deutsch"}, wizard.Extract(wizard.StepLanguage, snap))
	assert.Equal(t, wizard.Config{"keyboard": "de", "keyboardName": "DE - German"}, wizard.Extract(wizard.StepKeyboard, snap))
	assert.Equal(t, wizard.Config{"timezone": "Europe/Berlin"}, wizard.Extract(wizard.StepTimezone, snap))
	assert.Equal(t, wizard.Config{
		"disk":         "/dev/sda",
		"diskName":     "sda",
		"partitioning": wizard.Partitioning{Mode: wizard.PartitionManual},
	}, wizard.Extract(wizard.StepDisk, snap))
	assert.Equal(t, wizard.Config{
		"fullname": "Ada Lovelace",
		"username": "ada",
		"password": " spaced pw ",
		"hostname": "engine",
	}, wizard.Extract(wizard.StepUser, snap))
	assert.Nil(t, wizard.Extract(wizard.StepNetwork, snap))
	assert.Equal(t, wizard.Config{"network": "guest"}, wizard.Extract(wizard.StepNetwork, wizard.FormSnapshot{Network: "guest"}))
	assert.Nil(t, wizard.Extract(wizard.StepWelcome, snap))
}

func TestSummarize(t *testing.T) {
	got := wizard.Summarize(nil, "twinaos")
	assert.Equal(t, wizard.Summary{
		Language:     "English",
		Keyboard:     "US",
		Timezone:     "UTC",
		Network:      "Not connected",
		Disk:         "None selected",
		Partitioning: "Automatic",
		FullName:     "-",
		Username:     "-",
		Hostname:     "twinaos",
	}, got)

	got = wizard.Summarize(wizard.Config{
		"languageName": "Deutsch",
		"diskName":     "sda",
		"partitioning": map[string]any{"mode": "manual"},
		"hostname":     "engine",
	}, "twinaos")
	assert.Equal(t, "Deutsch", got.Language)
	assert.Equal(t, "sda", got.Disk)
	assert.Equal(t, "Manual", got.Partitioning)
	assert.Equal(t, "engine", got.Hostname)
}
