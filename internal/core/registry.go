package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry   = make(map[ImportKind]KindDefinition)
	registryMu sync.RWMutex
)

// Register adds a kind definition to the registry.
// Panics if the kind is already registered or declares no fields.
func Register(def KindDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Kind]; exists {
		panic(fmt.Sprintf("import kind already registered: %s", def.Kind))
	}
	if len(def.Fields) == 0 {
		panic(fmt.Sprintf("import kind has no fields: %s", def.Kind))
	}

	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if f.Field == SkipField || seen[f.Field] {
			panic(fmt.Sprintf("invalid field %q for kind %s", f.Field, def.Kind))
		}
		seen[f.Field] = true
	}

	if def.Endpoint == "" {
		def.Endpoint = string(def.Kind) + "/import"
	}

	registry[def.Kind] = def
}

// Lookup returns a kind definition.
// Returns false if not found.
func Lookup(kind ImportKind) (KindDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// Fields returns the ordered target fields for kind.
// An unregistered kind is a programming error and panics;
// validate untrusted input with ParseKind first.
func Fields(kind ImportKind) []TargetField {
	def, ok := Lookup(kind)
	if !ok {
		panic(fmt.Sprintf("unknown import kind: %s", kind))
	}
	return def.Fields
}

// ParseKind converts user input into a registered kind.
func ParseKind(s string) (ImportKind, error) {
	kind := ImportKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Lookup(kind); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return kind, nil
}

// FieldByID returns the target field with the given identifier.
func FieldByID(kind ImportKind, id string) (TargetField, bool) {
	for _, f := range Fields(kind) {
		if f.Field == id {
			return f, true
		}
	}
	return TargetField{}, false
}

// All returns all registered kind definitions sorted by kind.
func All() []KindDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]KindDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})

	return result
}

// Kinds returns all registered kinds, sorted.
func Kinds() []ImportKind {
	defs := All()
	kinds := make([]ImportKind, len(defs))
	for i, d := range defs {
		kinds[i] = d.Kind
	}
	return kinds
}

// KindCount returns the number of registered kinds.
func KindCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
