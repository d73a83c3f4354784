package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/jsonc"
)

// Load reads and parses a profile document from path. JSON-with-comments
// is accepted, per the teacher's own config.Load. Include-path service
// entries are resolved relative to the profile's directory and
// environment-variable expansion (`$FOO`/`${FOO}`) is applied to every
// string value inside the service entries; the command and sandbox blocks
// are not expanded. Neither step is a concern of the profile
// grammar itself (spec.md §1 out-of-scope), but a shipped loader still has
// to do it somewhere.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided profile path, intentional
	if err != nil {
		return nil, fmt.Errorf("config: failed to read profile: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("config: profile %s is empty", path)
	}

	var p Profile
	if err := json.Unmarshal(jsonc.ToJSON(data), &p); err != nil {
		return nil, fmt.Errorf("config: invalid JSON in profile: %w", err)
	}

	dir := filepath.Dir(path)
	for kind, entry := range p.Services {
		resolved, err := resolveEntry(dir, entry)
		if err != nil {
			return nil, fmt.Errorf("config: service %q: %w", kind, err)
		}
		p.Services[kind] = resolved
	}

	return &p, nil
}

// resolveEntry turns an include-path entry into inline content, merging
// multiple glob-matched fragment files (sorted by path) by a shallow
// top-level object merge, later fragments overriding earlier ones. An
// already-inline entry is returned with env expansion applied to its
// string values.
func resolveEntry(profileDir string, entry ServiceEntry) (ServiceEntry, error) {
	if entry.Include == "" {
		expanded, err := expandEnvInJSON(entry.Inline)
		if err != nil {
			return entry, err
		}
		return ServiceEntry{Inline: expanded}, nil
	}

	paths, err := matchIncludePaths(profileDir, entry.Include)
	if err != nil {
		return entry, err
	}
	if len(paths) == 0 {
		return entry, fmt.Errorf("include %q matched no files", entry.Include)
	}

	var fragments []json.RawMessage
	for _, p := range paths {
		data, err := os.ReadFile(p) //nolint:gosec // paths resolved from a trusted profile's own directory
		if err != nil {
			return entry, fmt.Errorf("failed to read include %q: %w", p, err)
		}
		fragments = append(fragments, jsonc.ToJSON(data))
	}

	merged, err := mergeJSONObjects(fragments)
	if err != nil {
		return entry, err
	}
	expanded, err := expandEnvInJSON(merged)
	if err != nil {
		return entry, err
	}
	return ServiceEntry{Inline: expanded}, nil
}

// matchIncludePaths resolves an include value to one or more absolute
// paths. A value containing glob metacharacters is expanded with
// doublestar against the profile's directory, mirroring the teacher's
// doublestar.Glob(os.DirFS(base), pattern) idiom the teacher uses for its
// own glob-expanded allow/deny path lists; a plain value is a single
// literal path.
func matchIncludePaths(profileDir, include string) ([]string, error) {
	if !filepath.IsAbs(include) {
		include = filepath.ToSlash(include)
	}
	if !containsGlobChars(include) {
		path := include
		if !filepath.IsAbs(path) {
			path = filepath.Join(profileDir, path)
		}
		return []string{path}, nil
	}

	matches, err := doublestar.Glob(os.DirFS(profileDir), include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern %q: %w", include, err)
	}
	sort.Strings(matches)

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(profileDir, m)
	}
	return paths, nil
}

func containsGlobChars(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// mergeJSONObjects shallow-merges a sequence of JSON object fragments,
// later fragments overriding earlier ones key-for-key.
func mergeJSONObjects(fragments []json.RawMessage) (json.RawMessage, error) {
	merged := make(map[string]json.RawMessage)
	for _, frag := range fragments {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(frag, &obj); err != nil {
			return nil, fmt.Errorf("fragment is not a JSON object: %w", err)
		}
		for k, v := range obj {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// expandEnvInJSON walks a decoded JSON value and applies os.ExpandEnv to
// every string leaf.
func expandEnvInJSON(data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 {
		return data, nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	expanded := expandValue(v)
	return json.Marshal(expanded)
}

func expandValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return os.ExpandEnv(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = expandValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = expandValue(e)
		}
		return out
	default:
		return v
	}
}
