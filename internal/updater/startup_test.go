package updater

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCheckAndPrintBanner(t *testing.T) {
	tests := []struct {
		name       string
		cache      *VersionCache
		wantBanner bool
	}{
		{
			"update available",
			&VersionCache{LatestTag: "v2", LatestID: 7, InstalledID: 5, InstalledLabel: "v1", UpdateAvailable: true},
			true,
		},
		{
			"up to date",
			&VersionCache{LatestTag: "v1", LatestID: 5, InstalledID: 5, InstalledLabel: "v1"},
			false,
		},
		{
			"cache predates last update",
			&VersionCache{LatestTag: "v2", LatestID: 7, InstalledID: 3, InstalledLabel: "v0", UpdateAvailable: true},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, VersionRecord{ID: 5, Label: "v1"}, 7, "v2")
			u := f.updater(t, f.config())
			configDir := filepath.Join(f.work, "config")

			// A fresh cache keeps the background refresh from running.
			tt.cache.CheckedAt = time.Now()
			if err := SaveCache(configDir, tt.cache); err != nil {
				t.Fatal(err)
			}

			var out bytes.Buffer
			u.CheckAndPrintBanner(&out, "hatch", configDir)

			got := strings.Contains(out.String(), "Update available: v1 -> v2")
			if got != tt.wantBanner {
				t.Errorf("banner printed = %v, want %v (output %q)", got, tt.wantBanner, out.String())
			}
		})
	}
}

func TestPrintUpdateBanner(t *testing.T) {
	var out bytes.Buffer
	PrintUpdateBanner(&out, "hatch", "v1", "v2")
	if !strings.Contains(out.String(), "hatch update") {
		t.Errorf("banner = %q, want upgrade hint", out.String())
	}
}

func TestRefreshCache_LeavesWorkDirAlone(t *testing.T) {
	f := newFixture(t, DefaultRecord(), 7, "v2")
	statePath := filepath.Join(f.work, DefaultStateFile)
	if err := os.Remove(statePath); err != nil {
		t.Fatal(err)
	}
	u := f.updater(t, f.config())
	configDir := filepath.Join(t.TempDir(), "config")

	u.refreshCache(configDir)

	assertMissing(t, statePath)
	cache, err := LoadCache(configDir)
	if err != nil || cache == nil {
		t.Fatalf("cache = %+v, err = %v", cache, err)
	}
	if cache.LatestID != 7 || cache.InstalledID != 0 {
		t.Errorf("cache = %+v", cache)
	}
}
