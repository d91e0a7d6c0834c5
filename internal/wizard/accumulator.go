package wizard

import "maps"

// Config is the accumulated settings of a session. Values are strings or
// small structured values such as Partitioning.
type Config map[string]any

// Clone returns a shallow copy.
func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	return maps.Clone(c)
}

// String returns the value at key when it is a non-empty string.
func (c Config) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok && s != ""
}

// Accumulator grows a Config by shallow merge. It is never reset and keys
// are never removed. The owning Session serialises access.
type Accumulator struct {
	cfg Config
}

func NewAccumulator() *Accumulator {
	return &Accumulator{cfg: Config{}}
}

// Merge copies every key of fragment over the current values. Keys absent
// from fragment are untouched.
func (a *Accumulator) Merge(fragment Config) {
	maps.Copy(a.cfg, fragment)
}

// Snapshot returns a copy that later merges do not affect.
func (a *Accumulator) Snapshot() Config {
	return a.cfg.Clone()
}

func (a *Accumulator) Len() int { return len(a.cfg) }
