package ingestion

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// GroupRegistry maps export chat names to stable group keys and metadata.
// Exports carry only a display name; the registry pins the key so renamed
// chats keep accumulating into the same group.

type GroupSpec struct {
	Key        string   `yaml:"key"`
	Name       string   `yaml:"name"`
	University string   `yaml:"university"`
	Category   string   `yaml:"category"`
	Aliases    []string `yaml:"aliases"`
}

type GroupRegistry struct {
	byName map[string]GroupSpec
	byKey  map[string]GroupSpec
}

type registryFile struct {
	Groups []GroupSpec `yaml:"groups"`
}

func LoadGroupRegistry(path string) (*GroupRegistry, error) {
	reg := &GroupRegistry{
		byName: map[string]GroupSpec{},
		byKey:  map[string]GroupSpec{},
	}
	if path == "" {
		return reg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read group registry: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse group registry: %w", err)
	}

	for _, g := range f.Groups {
		if g.Key == "" {
			return nil, fmt.Errorf("group registry entry %q missing key", g.Name)
		}
		if g.Category == "" {
			g.Category = "general"
		}
		reg.byKey[g.Key] = g
		if g.Name != "" {
			reg.byName[normalizeName(g.Name)] = g
		}
		for _, alias := range g.Aliases {
			reg.byName[normalizeName(alias)] = g
		}
	}
	return reg, nil
}

// Resolve maps an export chat name to its registered spec. Unregistered
// names fall back to a synthetic export::<slug> key so ingestion never
// drops data on a missing registry entry.
func (r *GroupRegistry) Resolve(exportName string) GroupSpec {
	if g, ok := r.byName[normalizeName(exportName)]; ok {
		return g
	}
	return GroupSpec{
		Key:      "export::" + Slugify(exportName),
		Name:     strings.TrimSpace(exportName),
		Category: "general",
	}
}

func (r *GroupRegistry) ByKey(key string) (GroupSpec, bool) {
	g, ok := r.byKey[key]
	return g, ok
}

func (r *GroupRegistry) Len() int { return len(r.byKey) }

var slugRE = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(name string) string {
	s := slugRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unknown"
	}
	return s
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
