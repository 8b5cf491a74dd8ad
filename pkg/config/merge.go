package config

import "maps"

// Merge merges source into target and updates source tracking. Values are
// applied when non-zero or when the key was present in the source file.
func Merge(target, source *Config, sourceType string) {
	if source == nil {
		return
	}
	if target.Sources == nil {
		target.Sources = make(map[string]string)
	}
	set := func(key string, nonZero bool) bool {
		if nonZero || source.SetFields[key] {
			target.Sources[key] = sourceType
			return true
		}
		return false
	}

	if set("baseUrl", source.BaseURL != "") {
		target.BaseURL = source.BaseURL
	}
	if set("timeout", source.Timeout != 0) {
		target.Timeout = source.Timeout
	}
	if set("token", source.Token != "") {
		target.Token = source.Token
	}
	if set("rateLimit", source.RateLimit != 0) {
		target.RateLimit = source.RateLimit
	}
	if set("cacheDuration", source.CacheDuration != 0) {
		target.CacheDuration = source.CacheDuration
	}
	if set("ledger.backend", source.Ledger.Backend != "") {
		target.Ledger.Backend = source.Ledger.Backend
	}
	if set("ledger.path", source.Ledger.Path != "") {
		target.Ledger.Path = source.Ledger.Path
	}
	if set("logLevel", source.LogLevel != "") {
		target.LogLevel = source.LogLevel
	}
	if set("logFormat", source.LogFormat != "") {
		target.LogFormat = source.LogFormat
	}
	if set("conventions", source.Conventions != nil) && source.Conventions != nil {
		t := target.Table().Merge(*source.Conventions)
		target.Conventions = &t
	}
	if set("syncRules", len(source.SyncRules) > 0) {
		target.SyncRules = append(target.SyncRules, source.SyncRules...)
	}
	if set("translations", len(source.Translations) > 0) {
		if target.Translations == nil {
			target.Translations = maps.Clone(source.Translations)
		} else {
			maps.Copy(target.Translations, source.Translations)
		}
	}
}
