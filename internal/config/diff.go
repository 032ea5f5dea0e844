package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Hot-reloadable changes are reported field by field; everything else is
// listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DictionaryChanged is true when the rule sources changed and the
	// dictionary must be rebuilt.
	DictionaryChanged bool

	// HighlightChanged is true when the highlight classes changed.
	HighlightChanged bool

	// RestartRequired names the top-level sections that changed but only
	// take effect after a restart.
	RestartRequired []string
}

// Changed reports whether d holds any difference.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.DictionaryChanged || d.HighlightChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	od, nd := old.Dictionary, new.Dictionary
	if od.DisableBuiltin != nd.DisableBuiltin || od.NormalizeInput != nd.NormalizeInput || !slices.Equal(od.Files, nd.Files) {
		d.DictionaryChanged = true
	}

	if old.Highlight != new.Highlight {
		d.HighlightChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if !reflect.DeepEqual(old.Naturalize, new.Naturalize) {
		d.RestartRequired = append(d.RestartRequired, "naturalize")
	}
	if old.Redis != new.Redis {
		d.RestartRequired = append(d.RestartRequired, "redis")
	}
	if old.History != new.History {
		d.RestartRequired = append(d.RestartRequired, "history")
	}

	return d
}
