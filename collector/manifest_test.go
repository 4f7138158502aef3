package collector

import (
	"os"
	"path/filepath"
	"testing"
)

func tmpManifestPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "manifest.json")
}

func TestManifest_SaveLoadRoundTrip(t *testing.T) {
	path := tmpManifestPath(t)

	m := LoadManifest(path)
	m.UpdateFromResult(Result{
		Site:      "cfmem",
		TodayPage: "https://www.cfmem.com/today.html",
		Status:    StatusPartial,
		Files: map[string]FileResult{
			"v2ray.txt":  {URL: "https://example.com/v2ray.txt", Success: true},
			"clash.yaml": {URL: "https://example.com/clash.yaml", Err: "file too small"},
		},
	})
	if err := m.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	back := LoadManifest(path)
	if back.LastRun == "" {
		t.Error("Save() must stamp last_run")
	}
	entry, ok := back.Sites["cfmem"]
	if !ok {
		t.Fatal("site entry missing after round trip")
	}
	if entry.Status != StatusPartial || entry.TodayPage != "https://www.cfmem.com/today.html" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.UpdatedAt == "" {
		t.Error("partial run should still update updated_at")
	}
	if f := entry.Files["v2ray.txt"]; !f.Success || f.URL != "https://example.com/v2ray.txt" {
		t.Errorf("v2ray entry = %+v", f)
	}
	if f := entry.Files["clash.yaml"]; f.Success || f.Error != "file too small" {
		t.Errorf("clash entry = %+v", f)
	}
}

func TestManifest_FailedRunKeepsEmptyUpdatedAt(t *testing.T) {
	m := LoadManifest(tmpManifestPath(t))
	m.UpdateFromResult(Result{Site: "cfmem", Status: StatusFailed, Err: "discovery failed"})

	entry := m.Sites["cfmem"]
	if entry.UpdatedAt != "" {
		t.Errorf("failed run must not stamp updated_at, got %q", entry.UpdatedAt)
	}
	if entry.Error != "discovery failed" {
		t.Errorf("entry.Error = %q", entry.Error)
	}
}

func TestManifest_ShouldDownload(t *testing.T) {
	m := LoadManifest(tmpManifestPath(t))

	if !m.ShouldDownload("cfmem", "https://example.com/a.txt") {
		t.Error("unknown site must always download")
	}

	m.UpdateFromResult(Result{
		Site:   "cfmem",
		Status: StatusPartial,
		Files: map[string]FileResult{
			"a.txt": {URL: "https://example.com/a.txt", Success: true},
			"b.txt": {URL: "https://example.com/b.txt", Err: "boom"},
		},
	})

	if m.ShouldDownload("cfmem", "https://example.com/a.txt") {
		t.Error("previously successful URL should be skipped")
	}
	if !m.ShouldDownload("cfmem", "https://example.com/b.txt") {
		t.Error("previously failed URL must be retried")
	}
	// 站点换了订阅地址：新 URL 总是要下载
	if !m.ShouldDownload("cfmem", "https://example.com/new.txt") {
		t.Error("unseen URL must be downloaded")
	}
}

func TestLoadManifest_MissingAndMalformed(t *testing.T) {
	m := LoadManifest(filepath.Join(t.TempDir(), "nope.json"))
	if len(m.Sites) != 0 {
		t.Errorf("missing manifest produced %d sites, want 0", len(m.Sites))
	}

	path := tmpManifestPath(t)
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	m = LoadManifest(path)
	if len(m.Sites) != 0 || m.LastRun != "" {
		t.Errorf("malformed manifest must start fresh, got %+v", m)
	}
}
