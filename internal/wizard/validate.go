package wizard

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
	hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
)

// MinUsernameLength is the shortest accepted account name.
const MinUsernameLength = 3

// ValidUsername reports whether s starts with a lowercase letter, continues
// with lowercase letters or digits only, and is at least three long.
func ValidUsername(s string) bool {
	return len(s) >= MinUsernameLength && usernamePattern.MatchString(s)
}

// ValidHostname reports whether s is a single RFC 1123 host label: letters,
// digits and inner hyphens, at most 63 long.
func ValidHostname(s string) bool {
	return hostnamePattern.MatchString(s)
}

// Strength is a password score in steps of 25 with its label.
type Strength struct {
	Score int
	Label string
}

// MinPasswordScore is the score a password needs to be accepted.
const MinPasswordScore = 50

// PasswordStrength awards 25 points for each of: at least 8 characters, a
// lowercase letter, an uppercase letter, a digit, and any other character.
// The score is capped at 100.
func PasswordStrength(pw string) Strength {
	score := 0
	if utf8.RuneCountInString(pw) >= 8 {
		score += 25
	}
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			score += 25
		}
	}
	score = min(score, 100)
	return Strength{Score: score, Label: strengthLabel(score)}
}

func strengthLabel(score int) string {
	switch {
	case score >= 100:
		return "Very Strong"
	case score >= 75:
		return "Strong"
	case score >= 50:
		return "Good"
	case score >= 25:
		return "Fair"
	default:
		return "Weak"
	}
}

// ValidPassword reports whether pw scores at least MinPasswordScore.
func ValidPassword(pw string) bool {
	return PasswordStrength(pw).Score >= MinPasswordScore
}

// ConfirmState is the outcome of comparing the confirmation field.
type ConfirmState int

const (
	// ConfirmNeutral means nothing was typed in the confirmation field yet.
	ConfirmNeutral ConfirmState = iota
	ConfirmMatch
	ConfirmMismatch
)

func (c ConfirmState) String() string {
	switch c {
	case ConfirmMatch:
		return "match"
	case ConfirmMismatch:
		return "mismatch"
	default:
		return "neutral"
	}
}

// ConfirmPassword compares the confirmation against the password. An empty
// confirmation is neutral: neither valid nor invalid.
func ConfirmPassword(pw, confirm string) ConfirmState {
	switch {
	case confirm == "":
		return ConfirmNeutral
	case pw == confirm:
		return ConfirmMatch
	default:
		return ConfirmMismatch
	}
}

// UserFields are the raw values of the account form.
type UserFields struct {
	FullName string
	Username string
	Password string
	Confirm  string
	Hostname string
}

// Valid is true when every account rule holds.
func (u UserFields) Valid() bool {
	return strings.TrimSpace(u.FullName) != "" &&
		ValidUsername(u.Username) &&
		ValidPassword(u.Password) &&
		ConfirmPassword(u.Password, u.Confirm) == ConfirmMatch &&
		ValidHostname(strings.TrimSpace(u.Hostname))
}

// FormSnapshot is an immutable copy of everything the user entered so far.
// Rules read it instead of any widget state.
type FormSnapshot struct {
	// Selected holds the chosen item per selection step. A step without an
	// entry has nothing selected.
	Selected     map[StepID]Item
	User         UserFields
	Partitioning PartitionMode
	Network      string
}

// Selection returns the chosen item of a selection step.
func (f FormSnapshot) Selection(step StepID) (Item, bool) {
	it, ok := f.Selected[step]
	return it, ok
}

// selectionSteps require exactly one chosen item before advancing.
var selectionSteps = map[StepID]bool{
	StepLanguage: true,
	StepKeyboard: true,
	StepTimezone: true,
	StepDisk:     true,
}

// ValidateStep reports whether the step may be submitted with the given form.
// Steps without required input are always valid.
func ValidateStep(step StepID, f FormSnapshot) bool {
	switch {
	case selectionSteps[step]:
		_, ok := f.Selection(step)
		return ok
	case step == StepUser:
		return f.User.Valid()
	default:
		return true
	}
}

// SuggestUsername derives an account name from a full name: the first word,
// transliterated to ASCII, keeping lowercase letters only.
func SuggestUsername(fullName string) string {
	first, _, _ := strings.Cut(slugify(fullName), "-")
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !unicode.IsLower(r) {
			return -1
		}
		return r
	}, first)
}
