package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hatch-dev/hatch/internal/platform"
	"github.com/hatch-dev/hatch/internal/updater"
)

const testSuffix = "x86_64-unknown-linux-musl.zip"

// setupUpdateTestServer serves release id/tag and a one-file archive, and
// returns an Updater pointed at it with a temp work dir and executable.
func setupUpdateTestServer(t *testing.T, installed updater.VersionRecord, id int64, tag string) (*updater.Updater, string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("hatch")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("new build"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	archive := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/hatch-dev/hatch/releases/latest":
			fmt.Fprintf(w, `{"id": %d, "tag_name": %q}`, id, tag)
		case fmt.Sprintf("/hatch-dev/hatch/releases/download/%s/hatch_%s_%s", tag, tag, testSuffix):
			w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	work := t.TempDir()
	exe := filepath.Join(work, "hatch")
	if err := os.WriteFile(exe, []byte("old build"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := updater.NewVersionStore(filepath.Join(work, updater.DefaultStateFile)).Save(installed); err != nil {
		t.Fatal(err)
	}

	u, err := updater.New(updater.Config{
		Owner:          "hatch-dev",
		Repo:           "hatch",
		Assets:         platform.AssetMap{platform.Linux: testSuffix},
		Platform:       platform.Linux,
		ExecutablePath: exe,
		WorkDir:        work,
	},
		updater.WithResolver(updater.NewResolver(
			updater.WithResolverHTTPClient(srv.Client()),
			updater.WithAPIHost(srv.URL),
			updater.WithDownloadHost(srv.URL),
		)),
		updater.WithFetcher(updater.NewFetcher(work, updater.WithFetcherHTTPClient(srv.Client()))),
		updater.WithProber(updater.ProberFunc(func(context.Context) error { return nil })),
	)
	if err != nil {
		t.Fatal(err)
	}
	return u, exe
}

func TestRunUpdate_CheckMode(t *testing.T) {
	u, exe := setupUpdateTestServer(t, updater.VersionRecord{ID: 5, Label: "v1.0.0"}, 7, "v1.1.0")
	configDir := t.TempDir()

	var stdout bytes.Buffer
	err := runUpdate(context.Background(), updateParams{stdout: &stdout, stderr: &bytes.Buffer{}, updater: u, check: true, configDir: configDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"Installed: v1.0.0 (#5)", "Latest:    v1.1.0 (#7)", "Update available (upgrade)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	data, _ := os.ReadFile(exe)
	if string(data) != "old build" {
		t.Error("check mode must not replace the executable")
	}

	cache, err := updater.LoadCache(configDir)
	if err != nil || cache == nil || !cache.UpdateAvailable {
		t.Errorf("cache = %+v, err = %v", cache, err)
	}
}

func TestRunUpdate_Apply(t *testing.T) {
	u, exe := setupUpdateTestServer(t, updater.VersionRecord{ID: 5, Label: "v1"}, 7, "v2")

	var stdout bytes.Buffer
	err := runUpdate(context.Background(), updateParams{stdout: &stdout, stderr: &bytes.Buffer{}, updater: u})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "Successfully updated v1 -> v2") {
		t.Errorf("output = %q", stdout.String())
	}
	data, _ := os.ReadFile(exe)
	if string(data) != "new build" {
		t.Errorf("executable = %q, want new build", data)
	}
}

func TestRunUpdate_UpToDate(t *testing.T) {
	u, _ := setupUpdateTestServer(t, updater.VersionRecord{ID: 7, Label: "v2"}, 7, "v2")

	var stdout bytes.Buffer
	if err := runUpdate(context.Background(), updateParams{stdout: &stdout, stderr: &bytes.Buffer{}, updater: u}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "latest release (v2)") {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestOfflinePrompt(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		assumeYes   bool
		interactive bool
		want        bool
	}{
		{"yes", "y\n", false, true, true},
		{"full yes", "YES\n", false, true, true},
		{"no", "n\n", false, true, false},
		{"empty line", "\n", false, true, false},
		{"eof", "", false, true, false},
		{"assume yes", "", true, true, true},
		{"no terminal", "y\n", false, false, false},
		{"no terminal with yes flag", "", true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			decide := offlinePrompt(strings.NewReader(tt.input), &out, tt.assumeYes, tt.interactive)
			got, err := decide(context.Background(), updater.VersionRecord{ID: 5, Label: "v1"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("decision = %v, want %v", got, tt.want)
			}
			if !tt.assumeYes && tt.interactive && !strings.Contains(out.String(), "Continue with installed v1?") {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestClassifyUpdateExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"swap incomplete", &updater.Error{Kind: updater.KindSwapIncomplete}, exitSwapIncomplete},
		{"wrapped swap incomplete", fmt.Errorf("x: %w", &updater.Error{Kind: updater.KindSwapIncomplete}), exitSwapIncomplete},
		{"user aborted", &updater.Error{Kind: updater.KindUserAborted}, exitUserCorrectable},
		{"lock held", &updater.Error{Kind: updater.KindLockHeld}, exitUserCorrectable},
		{"permission", fmt.Errorf("rename: %w", os.ErrPermission), exitUserCorrectable},
		{"remote unavailable", &updater.Error{Kind: updater.KindRemoteUnavailable}, exitFailure},
		{"plain", errors.New("boom"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyUpdateExitCode(tt.err); got != tt.want {
				t.Errorf("classifyUpdateExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUpdateHint_SwapIncomplete(t *testing.T) {
	u, exe := setupUpdateTestServer(t, updater.VersionRecord{ID: 5, Label: "v1"}, 7, "v2")

	exitErr := updateExitError(u, &updater.Error{Kind: updater.KindSwapIncomplete, Path: exe})
	if exitErr.Code != exitSwapIncomplete {
		t.Errorf("code = %d", exitErr.Code)
	}
	msg := exitErr.Error()
	if !strings.Contains(msg, u.Swapper().RollbackPath()) || !strings.Contains(msg, exe) {
		t.Errorf("message should name rollback copy and target:\n%s", msg)
	}
	if !errors.Is(exitErr, updater.ErrSwapIncomplete) {
		t.Error("ExitError should unwrap to the update error")
	}
}

func TestExitError(t *testing.T) {
	if got := (&ExitError{Code: 4}).Error(); got != "exit status 4" {
		t.Errorf("Error() = %q", got)
	}
	e := &ExitError{Code: 2, Err: errors.New("boom"), Hint: "try again"}
	if got := e.Error(); got != "boom\n\ntry again" {
		t.Errorf("Error() = %q", got)
	}
}

func TestPrintCheck_Unavailable(t *testing.T) {
	res := &updater.Result{
		Current:     updater.VersionRecord{ID: 5, Label: "v1"},
		Release:     &updater.ReleaseDescriptor{RemoteID: 7, Tag: "v2"},
		Unavailable: &updater.Error{Kind: updater.KindUnsupportedPlatform, Msg: "no binary available for macos"},
	}

	var out bytes.Buffer
	printCheck(&out, res)
	if !strings.Contains(out.String(), "v2 cannot be installed on this platform") {
		t.Errorf("output = %q", out.String())
	}
	if strings.Contains(out.String(), "Update available") {
		t.Errorf("should not offer an update:\n%s", out.String())
	}
}
