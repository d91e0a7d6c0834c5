package wizard

import (
	"strings"

	"github.com/gosimple/slug"
)

// PartitionMode selects how the target disk is laid out.
type PartitionMode string

const (
	PartitionAuto   PartitionMode = "auto"
	PartitionManual PartitionMode = "manual"
)

func (m PartitionMode) Label() string {
	if m == PartitionManual {
		return "Manual"
	}
	return "Automatic"
}

// Partitioning is stored under the "partitioning" config key.
type Partitioning struct {
	Mode PartitionMode `json:"mode"`
}

// Field names a text input of the account form.
type Field string

const (
	FieldFullName Field = "fullname"
	FieldUsername Field = "username"
	FieldPassword Field = "password"
	FieldConfirm  Field = "confirm"
	FieldHostname Field = "hostname"
)

// Fields lists the account form inputs in display order.
var Fields = []Field{FieldFullName, FieldUsername, FieldPassword, FieldConfirm, FieldHostname}

func (f Field) valid() bool {
	switch f {
	case FieldFullName, FieldUsername, FieldPassword, FieldConfirm, FieldHostname:
		return true
	}
	return false
}

// userForm tracks the account inputs plus whether the username was typed by
// hand. Until it is, the username follows the full name.
type userForm struct {
	fields         UserFields
	usernameEdited bool
}

func (u *userForm) set(f Field, value string) {
	switch f {
	case FieldFullName:
		u.fields.FullName = value
		if !u.usernameEdited {
			u.fields.Username = SuggestUsername(value)
		}
	case FieldUsername:
		u.fields.Username = value
		u.usernameEdited = value != ""
	case FieldPassword:
		u.fields.Password = value
	case FieldConfirm:
		u.fields.Confirm = value
	case FieldHostname:
		u.fields.Hostname = value
	}
}

func slugify(s string) string {
	return slug.Make(s)
}

// Extract returns the config fragment a step contributes. Steps that collect
// nothing return nil.
func Extract(step StepID, f FormSnapshot) Config {
	switch step {
	case StepLanguage:
		if it, ok := f.Selection(step); ok {
			return Config{"language": it.ID, "languageName": it.Label}
		}
	case StepKeyboard:
		if it, ok := f.Selection(step); ok {
			return Config{"keyboard": it.ID, "keyboardName": it.Label}
		}
	case StepTimezone:
		if it, ok := f.Selection(step); ok {
			return Config{"timezone": it.ID}
		}
	case StepNetwork:
		if f.Network != "" {
			return Config{"network": f.Network}
		}
	case StepDisk:
		out := Config{}
		if it, ok := f.Selection(step); ok {
			out["disk"] = it.ID
			out["diskName"] = it.Label
		}
		mode := f.Partitioning
		if mode == "" {
			mode = PartitionAuto
		}
		out["partitioning"] = Partitioning{Mode: mode}
		return out
	case StepUser:
		return Config{
			"fullname": strings.TrimSpace(f.User.FullName),
			"username": strings.TrimSpace(f.User.Username),
			"password": f.User.Password,
			"hostname": strings.TrimSpace(f.User.Hostname),
		}
	}
	return nil
}

// Summary is the human review of the accumulated config.
type Summary struct {
	Language     string
	Keyboard     string
	Timezone     string
	Network      string
	Disk         string
	Partitioning string
	FullName     string
	Username     string
	Hostname     string
}

// Summarize renders cfg for review, filling gaps with what the installer
// would use.
func Summarize(cfg Config, defaultHostname string) Summary {
	get := func(key, fallback string) string {
		if v, ok := cfg.String(key); ok {
			return v
		}
		return fallback
	}
	partitioning := PartitionAuto.Label()
	switch p := cfg["partitioning"].(type) {
	case Partitioning:
		partitioning = p.Mode.Label()
	case map[string]any:
		if m, ok := p["mode"].(string); ok {
			partitioning = PartitionMode(m).Label()
		}
	}
	if defaultHostname == "" {
		defaultHostname = "twinaos"
	}
	return Summary{
		Language:     get("languageName", "English"),
		Keyboard:     get("keyboardName", "US"),
		Timezone:     get("timezone", "UTC"),
		Network:      get("network", "Not connected"),
		Disk:         get("diskName", "None selected"),
		Partitioning: partitioning,
		FullName:     get("fullname", "-"),
		Username:     get("username", "-"),
		Hostname:     get("hostname", defaultHostname),
	}
}
