package plan

import (
	"encoding/json"

	"github.com/addonlift/addonlift/pkg/errors"
	"github.com/addonlift/addonlift/pkg/resolve"
)

// renderAddonManifest produces the v2 package.json for the addon. The
// original manifest's unmodeled fields are carried over verbatim; the
// v2 format then overrides the build-relevant ones.
func renderAddonManifest(rc *resolve.Context, newDeps map[string]string) ([]byte, error) {
	m := rc.Manifest()

	doc := make(map[string]json.RawMessage, len(m.Raw)+8)
	for k, v := range m.Raw {
		doc[k] = v
	}

	deps := cloneStringMap(m.Dependencies)
	devDeps := cloneStringMap(m.DevDependencies)
	for name, r := range newDeps {
		if v2Dependencies[name] {
			deps[name] = r
		} else {
			devDeps[name] = r
		}
	}
	// v1 build machinery has no place in a v2 addon.
	delete(deps, "ember-cli-babel")
	delete(deps, "ember-cli-htmlbars")

	set := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encoding %s for %s", key, m.Name)
		}
		doc[key] = raw
		return nil
	}

	fields := map[string]any{
		"ember-addon": map[string]any{
			"version": 2,
			"type":    "addon",
			"main":    "addon-main.cjs",
		},
		"exports": map[string]any{
			".":               "./dist/index.js",
			"./*":             "./dist/*.js",
			"./addon-main.js": "./addon-main.cjs",
		},
		"files": []string{"dist", "addon-main.cjs"},
		"scripts": map[string]string{
			"build":   "rollup --config",
			"start":   "rollup --config --watch",
			"prepack": "rollup --config",
		},
		"dependencies":    deps,
		"devDependencies": devDeps,
	}
	for k, v := range fields {
		if err := set(k, v); err != nil {
			return nil, err
		}
	}

	// The dummy-app config path no longer exists after extraction.
	delete(doc, "directories")

	return marshalManifest(doc)
}

// renderTestAppManifest synthesizes the extracted test app's
// package.json. The app depends on the addon through the workspace
// protocol of the detected package manager.
func renderTestAppManifest(rc *resolve.Context) ([]byte, error) {
	m := rc.Manifest()

	devDeps := cloneStringMap(m.DevDependencies)
	devDeps[m.Name] = workspaceRange(rc.PackageManager())
	delete(devDeps, "ember-cli-addon-docs") // docs stay with the addon

	doc := map[string]any{
		"name":        rc.TestAppName(),
		"version":     "0.0.0",
		"private":     true,
		"description": "Test app for " + m.Name,
		"scripts": map[string]string{
			"test":  "ember test",
			"start": "ember serve",
		},
		"devDependencies": devDeps,
		"ember": map[string]any{
			"edition": "octane",
		},
	}

	raw := make(map[string]json.RawMessage, len(doc))
	for k, v := range doc {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "encoding test app manifest for %s", m.Name)
		}
		raw[k] = b
	}
	return marshalManifest(raw)
}

func marshalManifest(doc map[string]json.RawMessage) ([]byte, error) {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encoding manifest")
	}
	return append(out, '\n'), nil
}

func cloneStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
