package updater

import (
	"context"
	"fmt"
	"io"
	"time"
)

// refreshTimeout bounds the background version check.
const refreshTimeout = 10 * time.Second

// CheckAndPrintBanner checks the version cache and prints an update banner if
// a different release is available. It never blocks: if the cache is stale, a
// background goroutine refreshes it for the next invocation.
func (u *Updater) CheckAndPrintBanner(w io.Writer, cliName, configDir string) {
	cache, err := LoadCache(configDir)
	if err != nil {
		// Silently ignore cache errors.
		return
	}

	// A cache written before the last update may describe an older install.
	if cache != nil && cache.UpdateAvailable {
		if local, err := u.store.current(); err == nil && local.ID == cache.InstalledID {
			PrintUpdateBanner(w, cliName, cache.InstalledLabel, cache.LatestTag)
		}
	}

	if IsCacheStale(cache, DefaultCacheMaxAge) {
		go u.refreshCache(configDir)
	}
}

// PrintUpdateBanner prints the update notification to w.
func PrintUpdateBanner(w io.Writer, cliName, current, latest string) {
	fmt.Fprintf(w, "\nUpdate available: %s -> %s\n", current, latest)
	fmt.Fprintf(w, "    Run `%s update` to upgrade\n\n", cliName)
}

// refreshCache fetches the latest release and updates the cache file.
// This runs in a background goroutine and never fails loudly.
func (u *Updater) refreshCache(configDir string) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	res, err := u.Check(ctx)
	if err != nil || res.Release == nil {
		return
	}

	// Silently ignore save errors.
	_ = SaveCache(configDir, CacheFromResult(res))
}
