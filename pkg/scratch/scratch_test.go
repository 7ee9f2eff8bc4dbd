package scratch

import (
	"os"
	"testing"
)

func TestNew(t *testing.T) {
	d, err := New("addonlift")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer d.Remove()

	info, err := os.Stat(d.Path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Error("scratch path is not a directory")
	}
}

func TestNewUnique(t *testing.T) {
	a, err := New("addonlift")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Remove()
	b, err := New("addonlift")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Remove()

	if a.Path == b.Path {
		t.Errorf("two scratch dirs share a path: %s", a.Path)
	}
}

func TestRemove(t *testing.T) {
	d, err := New("addonlift")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(d.Path); !os.IsNotExist(err) {
		t.Error("scratch dir still exists after Remove")
	}

	// Removing twice is harmless.
	if err := d.Remove(); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}
