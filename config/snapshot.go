package config

import (
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Snapshot flattens a datasource configuration into a nested map keyed by koanf tags.
// The result shares nothing with cfg; callers handing it out should CopySnapshot it again.
func Snapshot(cfg *DatabaseConfig) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	k := koanf.New(".")
	if err := k.Load(structs.Provider(*cfg, "koanf"), nil); err != nil {
		return map[string]any{}
	}
	return k.Raw()
}

// CopySnapshot returns a deep copy of a snapshot map.
func CopySnapshot(snapshot map[string]any) map[string]any {
	if snapshot == nil {
		return map[string]any{}
	}
	return maps.Copy(snapshot)
}
