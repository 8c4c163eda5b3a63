package env

import (
	"sort"
	"strings"
)

// Layers is an ordered stack of environment maps. Later layers override
// earlier ones.
type Layers []map[string]string

// Merge merges all layers into a single environment map
func (l Layers) Merge() map[string]string {
	result := make(map[string]string)
	for _, layer := range l {
		for k, v := range layer {
			result[k] = v
		}
	}
	return result
}

// Overlay returns a copy of base (KEY=value entries, as from os.Environ) with
// extra applied on top. Existing keys keep their position; new keys are
// appended in sorted order so the result is deterministic. base is never
// modified.
func Overlay(base []string, extra map[string]string) []string {
	result := make([]string, len(base), len(base)+len(extra))
	copy(result, base)
	if len(extra) == 0 {
		return result
	}

	index := make(map[string]int, len(result))
	for i, kv := range result {
		key, _, _ := strings.Cut(kv, "=")
		index[key] = i
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		entry := k + "=" + extra[k]
		if i, ok := index[k]; ok {
			result[i] = entry
			continue
		}
		index[k] = len(result)
		result = append(result, entry)
	}
	return result
}
