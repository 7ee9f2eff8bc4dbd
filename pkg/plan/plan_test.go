package plan

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/addonlift/addonlift/pkg/errors"
	"github.com/addonlift/addonlift/pkg/manifest"
	"github.com/addonlift/addonlift/pkg/pm"
	"github.com/addonlift/addonlift/pkg/resolve"
	"github.com/addonlift/addonlift/pkg/scratch"
)

// Fake gatherers to build a resolve.Context against a temp tree.

type stubManifest struct{ json string }

func (s stubManifest) Read(dir string) (*manifest.Manifest, error) {
	return manifest.Parse([]byte(s.json), filepath.Join(dir, manifest.Filename))
}

type stubRepoRoot struct{ root string }

func (s stubRepoRoot) Find(ctx context.Context, dir string) (string, error) { return s.root, nil }

type stubPM struct {
	kind pm.Kind
	root string
}

func (s stubPM) Detect(dir, repoRoot string, hint pm.Kind) (pm.Kind, string, error) {
	return s.kind, s.root, nil
}

type stubImports struct{ names []string }

func (s stubImports) Analyze(dir string) []string { return s.names }

type stubScratch struct{ base string }

func (s stubScratch) Provision() (*scratch.Dir, error) {
	path := filepath.Join(s.base, "scratch")
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	return &scratch.Dir{Path: path}, nil
}

type stubVersions struct {
	versions map[string]string
	err      error
}

func (s stubVersions) LatestVersion(ctx context.Context, name string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if v, ok := s.versions[name]; ok {
		return v, nil
	}
	return "", errors.New(errors.ErrCodePackageNotFound, "%s not found", name)
}

const addonJSON = `{
	"name": "@scope/my-addon",
	"version": "3.1.0",
	"keywords": ["ember-addon"],
	"ember-addon": {"configPath": "tests/dummy/config"},
	"dependencies": {"ember-cli-babel": "^8.0.0", "ember-modifier": "^4.1.0"},
	"devDependencies": {"ember-source": "~5.4.0"},
	"repository": "https://github.com/scope/my-addon"
}`

func buildContext(t *testing.T, dir, manifestJSON string, opts resolve.Options) *resolve.Context {
	t.Helper()
	opts.Directory = dir
	rc, err := resolve.Resolve(context.Background(), opts, resolve.Gatherers{
		Manifest:       stubManifest{manifestJSON},
		RepoRoot:       stubRepoRoot{dir},
		PackageManager: stubPM{pm.Pnpm, dir},
		Imports:        stubImports{[]string{"ember-modifier", "@glimmer/component"}},
		Scratch:        stubScratch{t.TempDir()},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(rc.ScratchDir()) })
	return rc
}

func discard() *log.Logger { return log.New(io.Discard) }

func TestBuildTargets(t *testing.T) {
	dir := t.TempDir()
	rc := buildContext(t, dir, addonJSON, resolve.Options{})

	p, err := Build(context.Background(), rc, stubVersions{versions: map[string]string{}}, discard())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if want := filepath.Join(dir, "my-addon"); p.AddonDir != want {
		t.Errorf("AddonDir = %q, want %q", p.AddonDir, want)
	}
	if want := filepath.Join(dir, "test-app"); p.TestAppDir != want {
		t.Errorf("TestAppDir = %q, want %q", p.TestAppDir, want)
	}
	if len(p.Moves) == 0 {
		t.Fatal("Build() produced no moves")
	}
	if p.Moves[0].From != "addon" || p.Moves[0].To != filepath.Join("my-addon", "src") {
		t.Errorf("first move = %+v, want addon -> my-addon/src", p.Moves[0])
	}

	want := []string{"@glimmer/component"}
	if len(p.PhantomDependencies) != 1 || p.PhantomDependencies[0] != want[0] {
		t.Errorf("PhantomDependencies = %v, want %v", p.PhantomDependencies, want)
	}
}

func TestBuildNewDependencyVersions(t *testing.T) {
	t.Run("registry latest", func(t *testing.T) {
		rc := buildContext(t, t.TempDir(), addonJSON, resolve.Options{})
		p, err := Build(context.Background(), rc, stubVersions{versions: map[string]string{
			"@embroider/addon-shim": "1.10.0",
		}}, discard())
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if got := p.NewDependencies["@embroider/addon-shim"]; got != "^1.10.0" {
			t.Errorf("addon-shim range = %q, want ^1.10.0", got)
		}
	})

	t.Run("fallback on registry failure", func(t *testing.T) {
		rc := buildContext(t, t.TempDir(), addonJSON, resolve.Options{})
		p, err := Build(context.Background(), rc, stubVersions{err: errors.New(errors.ErrCodeNetwork, "down")}, discard())
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if got := p.NewDependencies["rollup"]; got != fallbackVersions["rollup"] {
			t.Errorf("rollup range = %q, want fallback %q", got, fallbackVersions["rollup"])
		}
	})

	t.Run("reuse existing versions", func(t *testing.T) {
		src := `{
			"name": "my-addon",
			"keywords": ["ember-addon"],
			"ember-addon": {},
			"devDependencies": {"rollup": "^3.29.0"}
		}`
		rc := buildContext(t, t.TempDir(), src, resolve.Options{ReuseExistingVersions: true})
		p, err := Build(context.Background(), rc, stubVersions{versions: map[string]string{"rollup": "4.9.0"}}, discard())
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if got := p.NewDependencies["rollup"]; got != "^3.29.0" {
			t.Errorf("rollup range = %q, want declared ^3.29.0", got)
		}
	})

	t.Run("ignore new dependencies", func(t *testing.T) {
		rc := buildContext(t, t.TempDir(), addonJSON, resolve.Options{IgnoreNewDependencies: true})
		p, err := Build(context.Background(), rc, nil, discard())
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if p.NewDependencies != nil {
			t.Errorf("NewDependencies = %v, want nil", p.NewDependencies)
		}
	})
}

func TestRenderAddonManifest(t *testing.T) {
	rc := buildContext(t, t.TempDir(), addonJSON, resolve.Options{})
	p, err := Build(context.Background(), rc, stubVersions{versions: map[string]string{}}, discard())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var doc struct {
		Name       string `json:"name"`
		Repository string `json:"repository"`
		EmberAddon struct {
			Version int    `json:"version"`
			Main    string `json:"main"`
		} `json:"ember-addon"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
		Files           []string          `json:"files"`
	}
	if err := json.Unmarshal(p.AddonManifest, &doc); err != nil {
		t.Fatalf("AddonManifest is not valid JSON: %v", err)
	}

	if doc.Name != "@scope/my-addon" {
		t.Errorf("name = %q", doc.Name)
	}
	if doc.Repository != "https://github.com/scope/my-addon" {
		t.Error("unmodeled field repository not carried over")
	}
	if doc.EmberAddon.Version != 2 {
		t.Errorf("ember-addon.version = %d, want 2", doc.EmberAddon.Version)
	}
	if doc.EmberAddon.Main != "addon-main.cjs" {
		t.Errorf("ember-addon.main = %q", doc.EmberAddon.Main)
	}
	if _, ok := doc.Dependencies["ember-cli-babel"]; ok {
		t.Error("ember-cli-babel must be removed from a v2 addon")
	}
	if _, ok := doc.Dependencies["@embroider/addon-shim"]; !ok {
		t.Error("@embroider/addon-shim missing from dependencies")
	}
	if _, ok := doc.DevDependencies["rollup"]; !ok {
		t.Error("rollup missing from devDependencies")
	}
	if _, ok := doc.Dependencies["ember-modifier"]; !ok {
		t.Error("existing runtime dependency dropped")
	}
}

func TestRenderTestAppManifest(t *testing.T) {
	rc := buildContext(t, t.TempDir(), addonJSON, resolve.Options{})
	p, err := Build(context.Background(), rc, stubVersions{versions: map[string]string{}}, discard())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var doc struct {
		Name            string            `json:"name"`
		Private         bool              `json:"private"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(p.TestAppManifest, &doc); err != nil {
		t.Fatalf("TestAppManifest is not valid JSON: %v", err)
	}

	if doc.Name != "test-app" {
		t.Errorf("name = %q, want test-app", doc.Name)
	}
	if !doc.Private {
		t.Error("test app must be private")
	}
	if got := doc.DevDependencies["@scope/my-addon"]; got != "workspace:*" {
		t.Errorf("addon range = %q, want workspace:* under pnpm", got)
	}
	if got := doc.DevDependencies["ember-source"]; got != "~5.4.0" {
		t.Errorf("ember-source = %q, want carried from addon devDependencies", got)
	}
}

func TestExecutorApply(t *testing.T) {
	dir := t.TempDir()
	for path, content := range map[string]string{
		"addon/index.js":                    "export default {};",
		"addon/components/thing.js":         "export class Thing {}",
		"app/components/thing.js":           "export { default } from '@scope/my-addon';",
		"tests/unit/thing-test.js":          "// test",
		"tests/dummy/config/environment.js": "module.exports = {};",
	} {
		full := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	rc := buildContext(t, dir, addonJSON, resolve.Options{})
	p, err := Build(context.Background(), rc, stubVersions{versions: map[string]string{}}, discard())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := NewExecutor(discard(), false).Apply(context.Background(), rc, p); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	for _, want := range []string{
		"my-addon/src/index.js",
		"my-addon/src/components/thing.js",
		"my-addon/app/components/thing.js",
		"my-addon/package.json",
		"test-app/tests/unit/thing-test.js",
		"test-app/package.json",
	} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("missing %s after Apply: %v", want, err)
		}
	}

	for _, gone := range []string{"addon", "app", "tests"} {
		if _, err := os.Stat(filepath.Join(dir, gone)); !os.IsNotExist(err) {
			t.Errorf("original %s/ still present after Apply", gone)
		}
	}
}

func TestExecutorApplyFailureKeepsOriginals(t *testing.T) {
	dir := t.TempDir()
	for path, content := range map[string]string{
		"addon/index.js":           "export default {};",
		"app/components/thing.js":  "export { default } from '@scope/my-addon';",
		"tests/unit/thing-test.js": "// test",
	} {
		full := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// A plain file occupying the addon destination makes the commit
	// step fail after staging succeeded.
	if err := os.WriteFile(filepath.Join(dir, "my-addon"), []byte("in the way"), 0644); err != nil {
		t.Fatal(err)
	}

	rc := buildContext(t, dir, addonJSON, resolve.Options{})
	p, err := Build(context.Background(), rc, stubVersions{versions: map[string]string{}}, discard())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	err = NewExecutor(discard(), false).Apply(context.Background(), rc, p)
	if err == nil {
		t.Fatal("Apply() should fail when the destination is occupied")
	}
	if errors.GetCode(err) != errors.ErrCodeMigration {
		t.Errorf("code = %v, want MIGRATION_FAILED", errors.GetCode(err))
	}

	for _, want := range []string{
		"addon/index.js",
		"app/components/thing.js",
		"tests/unit/thing-test.js",
	} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("original %s lost after failed Apply: %v", want, err)
		}
	}
}

func TestExecutorApplySourceIsDestinationRoot(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "addon", "index.js")
	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("export default {};"), 0644); err != nil {
		t.Fatal(err)
	}

	// Target the addon package at "addon", the same directory the v1
	// sources live in.
	rc := buildContext(t, dir, addonJSON, resolve.Options{AddonLocation: "addon"})
	p, err := Build(context.Background(), rc, stubVersions{versions: map[string]string{}}, discard())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := NewExecutor(discard(), false).Apply(context.Background(), rc, p); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	for _, want := range []string{
		"addon/src/index.js",
		"addon/package.json",
	} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("missing %s after Apply: %v", want, err)
		}
	}
}

func TestExecutorDryRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "addon", "index.js")
	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("export default {};"), 0644); err != nil {
		t.Fatal(err)
	}

	rc := buildContext(t, dir, addonJSON, resolve.Options{AnalysisOnly: true})
	p, err := Build(context.Background(), rc, stubVersions{versions: map[string]string{}}, discard())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := NewExecutor(discard(), true).Apply(context.Background(), rc, p); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if _, err := os.Stat(src); err != nil {
		t.Error("dry run modified the tree")
	}
	if _, err := os.Stat(filepath.Join(dir, "my-addon")); !os.IsNotExist(err) {
		t.Error("dry run created the addon directory")
	}
}
