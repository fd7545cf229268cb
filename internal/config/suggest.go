// Completion: 100% - Key suggestion complete
package config

import (
	"reflect"
	"sort"
	"strings"
)

// maxSuggestDistance is the largest edit distance still offered as a hint.
const maxSuggestDistance = 3

// knownKeys lists the TOML keys of Config, taken from its struct tags.
func knownKeys() []string {
	t := reflect.TypeOf(Config{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag, ok := t.Field(i).Tag.Lookup("toml"); ok {
			keys = append(keys, strings.Split(tag, ",")[0])
		}
	}
	return keys
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}
	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		cur[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(s2)]
}

// similarKeys returns up to limit known keys close to name, closest first.
func similarKeys(name string, limit int) []string {
	type suggestion struct {
		key      string
		distance int
	}
	var found []suggestion
	for _, key := range knownKeys() {
		if d := levenshteinDistance(name, key); d > 0 && d <= maxSuggestDistance {
			found = append(found, suggestion{key, d})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].distance == found[j].distance {
			return found[i].key < found[j].key
		}
		return found[i].distance < found[j].distance
	})
	out := make([]string, 0, limit)
	for i := 0; i < len(found) && i < limit; i++ {
		out = append(out, found[i].key)
	}
	return out
}

// describeUnknown renders an unknown key with a hint when one is close.
func describeUnknown(key string) string {
	if s := similarKeys(key, 1); len(s) > 0 {
		return key + " (did you mean " + s[0] + "?)"
	}
	return key
}
