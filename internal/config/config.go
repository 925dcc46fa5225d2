// Package config implements Boruna's layered configuration, grounded
// directly on the teacher's internal/util/config.go: a TOML file layer
// (lowest precedence), then BORUNA__-prefixed environment variables,
// then CLI flags (highest precedence), merged into one flat key->value
// store addressed by dotted keys.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Configuration holds the resolved settings a Runner needs: registry
// root, default policy file, execution bounds, evidence output dir.
type Configuration struct {
	RootPath        string
	RegistryRoot    string
	PolicyPath      string
	EvidenceDir     string
	MaxSteps        int
	MaxRounds       int
	PerSliceBudget  int
	Store           *Store
}

// Store is the flattened, dotted-key configuration map assembled from
// all three layers.
type Store struct {
	Values map[string]any
}

func NewStore() *Store {
	return &Store{Values: make(map[string]any)}
}

// Load builds a Store following the teacher's three-layer precedence:
// TOML file(s), then SLUG__-style (here BORUNA__) env vars, then
// explicit CLI overrides passed in by the caller (already parsed by
// cobra/pflag upstream — this layer just merges key/value pairs).
func Load(rootPath string, cliOverrides map[string]string) *Store {
	store := NewStore()

	// Layer 1: config file (lowest precedence).
	searchPaths := []string{}
	if rootPath != "" {
		searchPaths = append(searchPaths, filepath.Join(rootPath, "boruna.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".boruna", "config.toml"))
	}
	for _, path := range searchPaths {
		var data map[string]any
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &data); err == nil {
				mergeMaps(store.Values, data, "")
			}
		}
	}

	// Layer 2: environment variables (BORUNA__ prefix, __ as separator).
	const prefix = "BORUNA__"
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.TrimPrefix(pair[0], prefix)
		key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
		store.Values[key] = pair[1]
	}

	// Layer 3: CLI flags (highest precedence).
	for k, v := range cliOverrides {
		store.Values[k] = v
	}

	return store
}

func mergeMaps(dest map[string]any, src map[string]any, prefix string) {
	for k, v := range src {
		fullKey := k
		if prefix != "" {
			fullKey = prefix + "." + k
		}
		if subMap, ok := v.(map[string]any); ok {
			mergeMaps(dest, subMap, fullKey)
		} else {
			dest[fullKey] = v
		}
	}
}

func (s *Store) Get(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

func (s *Store) GetString(key, fallback string) string {
	if v, ok := s.Values[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return fallback
}

func (s *Store) GetInt(key string, fallback int) int {
	v, ok := s.Values[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return fallback
}

// Resolve builds a Configuration from a Store, falling back to the
// built-in defaults below for any key the Store does not set.
func Resolve(rootPath string, store *Store) *Configuration {
	return &Configuration{
		RootPath:       rootPath,
		RegistryRoot:   store.GetString("registry.root", filepath.Join(rootPath, ".boruna", "registry")),
		PolicyPath:     store.GetString("policy.path", ""),
		EvidenceDir:    store.GetString("evidence.dir", filepath.Join(rootPath, ".boruna", "evidence")),
		MaxSteps:       store.GetInt("vm.max_steps", 1_000_000),
		MaxRounds:      store.GetInt("actors.max_rounds", 10_000),
		PerSliceBudget: store.GetInt("actors.per_slice_budget", 1024),
		Store:          store,
	}
}
