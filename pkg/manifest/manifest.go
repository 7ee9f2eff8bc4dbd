// Package manifest loads and models npm package manifests (package.json).
//
// The Manifest type is read-only input to the resolution engine: it is
// parsed once from disk and never written back. The planner produces new
// manifests separately; it never mutates the loaded one.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/addonlift/addonlift/pkg/errors"
)

// Filename is the canonical npm manifest filename.
const Filename = "package.json"

// addonKeyword marks an Ember addon in the package keyword list.
const addonKeyword = "ember-addon"

// v2FormatVersion is the ember-addon metadata version tag of the v2 format.
const v2FormatVersion = 2

// AddonMeta is the "ember-addon" metadata block of a package manifest.
// A version tag of 2 marks the package as already using the v2 format.
type AddonMeta struct {
	Version    int      `json:"version,omitempty"`
	Type       string   `json:"type,omitempty"`
	Main       string   `json:"main,omitempty"`
	ConfigPath string   `json:"configPath,omitempty"`
	Paths      []string `json:"paths,omitempty"`
}

// Manifest is a parsed package.json. Fields not modeled here are retained
// verbatim in Raw so the planner can carry them into rewritten manifests.
type Manifest struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Description      string            `json:"description"`
	Keywords         []string          `json:"keywords"`
	Scripts          map[string]string `json:"scripts"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	Ember            map[string]any    `json:"ember"`
	EmberAddon       *AddonMeta        `json:"ember-addon"`
	PackageManager   string            `json:"packageManager"`
	Workspaces       []string          `json:"workspaces"`

	// Raw holds every top-level field of the original document.
	Raw map[string]json.RawMessage `json:"-"`

	// Path is the absolute path the manifest was loaded from.
	Path string `json:"-"`
}

// Load reads and parses the package.json in dir.
// It fails with a MANIFEST_READ error when the file is missing or invalid;
// the message tells the user to run from a package directory or pass one.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, Filename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestRead, err,
			"could not read %s in %s: run addonlift from a package directory or pass --directory", Filename, dir)
	}

	return Parse(data, path)
}

// Parse decodes manifest bytes. path is recorded for diagnostics only.
func Parse(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestRead, err, "invalid %s at %s", Filename, path)
	}
	if m.Name == "" {
		return nil, errors.New(errors.ErrCodeManifestRead, "%s at %s has no \"name\" field", Filename, path)
	}

	if err := json.Unmarshal(data, &m.Raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestRead, err, "invalid %s at %s", Filename, path)
	}
	m.Path = path

	return &m, nil
}

// IsEmber reports whether the package carries either Ember metadata key.
func (m *Manifest) IsEmber() bool {
	return m.Ember != nil || m.EmberAddon != nil
}

// IsAddon reports whether the package is an Ember addon: Ember metadata
// plus the "ember-addon" keyword.
func (m *Manifest) IsAddon() bool {
	return m.IsEmber() && slices.Contains(m.Keywords, addonKeyword)
}

// IsV2Addon reports whether the addon already uses the v2 package format,
// signaled by ember-addon.version == 2.
func (m *Manifest) IsV2Addon() bool {
	return m.IsAddon() && m.EmberAddon != nil && m.EmberAddon.Version == v2FormatVersion
}

// IsV1Addon reports whether the addon uses the legacy v1 layout.
func (m *Manifest) IsV1Addon() bool {
	return m.IsAddon() && !m.IsV2Addon()
}

// HasDependency reports whether name is declared in "dependencies".
// Only the declared map is consulted, never the resolved tree.
func (m *Manifest) HasDependency(name string) bool {
	_, ok := m.Dependencies[name]
	return ok
}

// HasDevDependency reports whether name is declared in "devDependencies".
func (m *Manifest) HasDevDependency(name string) bool {
	_, ok := m.DevDependencies[name]
	return ok
}

// HasAnyDependency reports whether name appears in either declared map.
func (m *Manifest) HasAnyDependency(name string) bool {
	return m.HasDependency(name) || m.HasDevDependency(name)
}

// UsesTypeScript reports whether the package declares a typescript
// dependency in either map.
func (m *Manifest) UsesTypeScript() bool {
	return m.HasAnyDependency("typescript")
}
