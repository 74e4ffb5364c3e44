package webassets

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFallbackFS(t *testing.T) {
	fsys := FallbackFS()
	for name, want := range map[string]string{
		"maintenance.html": "maintenance",
		"404.html":         "not found",
	} {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(strings.ToLower(string(data)), want) {
			t.Fatalf("%s does not mention %q", name, want)
		}
	}
	if _, err := fs.Stat(fsys, "index.html"); err == nil {
		t.Fatal("fallback FS must not contain a site index")
	}
}

func TestSeedSiteFS(t *testing.T) {
	data, err := fs.ReadFile(SeedSiteFS(), "index.html")
	if err != nil {
		t.Fatalf("read seed index: %v", err)
	}
	if !strings.Contains(string(data), `id="root"`) {
		t.Fatal("seed index has no SPA mount point")
	}
}
