package updater

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hatch-dev/hatch/internal/platform"
)

// swapFixture lays out a target executable and its staged replacement.
func swapFixture(t *testing.T, kind platform.Kind, opts ...SwapperOption) (*Swapper, SwapPlan) {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, "bin", "hatch")
	writeFile(t, target, []byte("old"), 0755)

	s := NewSwapper(kind, filepath.Join(dir, CacheDirName), opts...)
	staged := s.StagedPath(target)
	writeFile(t, staged, []byte("new"), 0644)

	plan, err := s.Plan(target, staged)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	return s, plan
}

// failingRename fails the nth call (1-based) and delegates the rest to
// os.Rename.
func failingRename(n int) func(string, string) error {
	calls := 0
	return func(oldpath, newpath string) error {
		calls++
		if calls == n {
			return errors.New("injected rename failure")
		}
		return os.Rename(oldpath, newpath)
	}
}

func TestSwap(t *testing.T) {
	s, plan := swapFixture(t, platform.Linux)

	if err := s.Swap(plan); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if got := readFile(t, plan.Target); got != "new" {
		t.Errorf("target = %q, want %q", got, "new")
	}
	if got := readFile(t, plan.Rollback); got != "old" {
		t.Errorf("rollback = %q, want %q", got, "old")
	}
	assertMissing(t, plan.Staged)

	info, err := os.Stat(plan.Target)
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != platform.ExecutableMode {
		t.Errorf("target mode = %v, want %v", info.Mode().Perm(), platform.ExecutableMode)
	}
}

func TestSwap_ReplacesStaleRollback(t *testing.T) {
	s, plan := swapFixture(t, platform.MacOS)
	writeFile(t, plan.Rollback, []byte("older"), 0755)

	if err := s.Swap(plan); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if got := readFile(t, plan.Rollback); got != "old" {
		t.Errorf("rollback = %q, want %q", got, "old")
	}
}

func TestSwap_RecordRunsBetweenSteps(t *testing.T) {
	s, plan := swapFixture(t, platform.Linux)
	plan.Record = func() error {
		if got := readFile(t, plan.Rollback); got != "old" {
			t.Errorf("rollback at record time = %q, want %q", got, "old")
		}
		if got := readFile(t, plan.Staged); got != "new" {
			t.Errorf("staged at record time = %q, want %q", got, "new")
		}
		return nil
	}

	if err := s.Swap(plan); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if got := readFile(t, plan.Target); got != "new" {
		t.Errorf("target = %q, want %q", got, "new")
	}
}

func TestSwap_RecordFailureRestoresTarget(t *testing.T) {
	s, plan := swapFixture(t, platform.Linux)
	plan.Record = func() error { return errors.New("read-only cache") }

	err := s.Swap(plan)
	if !errors.Is(err, ErrSwapAborted) {
		t.Fatalf("error = %v, want ErrSwapAborted", err)
	}
	if got := readFile(t, plan.Target); got != "old" {
		t.Errorf("target = %q, want %q", got, "old")
	}
	assertMissing(t, plan.Rollback)
}

func TestSwap_CacheOutFailureKeepsTarget(t *testing.T) {
	s, plan := swapFixture(t, platform.Linux, WithRenameFunc(failingRename(1)))

	err := s.Swap(plan)
	if !errors.Is(err, ErrSwapAborted) {
		t.Fatalf("error = %v, want ErrSwapAborted", err)
	}
	if got := readFile(t, plan.Target); got != "old" {
		t.Errorf("target = %q, want untouched %q", got, "old")
	}
}

func TestSwap_PromoteFailureLeavesRollback(t *testing.T) {
	s, plan := swapFixture(t, platform.Linux, WithRenameFunc(failingRename(2)))

	err := s.Swap(plan)
	if !errors.Is(err, ErrSwapIncomplete) {
		t.Fatalf("error = %v, want ErrSwapIncomplete", err)
	}
	assertMissing(t, plan.Target)
	if got := readFile(t, plan.Rollback); got != "old" {
		t.Errorf("rollback = %q, want %q", got, "old")
	}

	// Recovery puts the previous build back.
	rescue := NewSwapper(platform.Linux, filepath.Dir(plan.Rollback))
	if err := rescue.Restore(plan.Target); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := readFile(t, plan.Target); got != "old" {
		t.Errorf("target after restore = %q, want %q", got, "old")
	}
}

func TestSwap_Unsupported(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "hatch")
	writeFile(t, target, []byte("old"), 0755)

	s := NewSwapper(platform.Unsupported, filepath.Join(dir, CacheDirName))
	if _, err := s.Plan(target, s.StagedPath(target)); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("Plan error = %v, want ErrUnsupportedPlatform", err)
	}
	err := s.Swap(SwapPlan{Target: target, Staged: s.StagedPath(target), Rollback: s.RollbackPath()})
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("Swap error = %v, want ErrUnsupportedPlatform", err)
	}
	if got := readFile(t, target); got != "old" {
		t.Errorf("target = %q, want untouched", got)
	}
}

func TestSwap_WindowsStagedName(t *testing.T) {
	s := NewSwapper(platform.Windows, t.TempDir())
	target := filepath.Join("dir", "hatch.exe")

	if got, want := s.StagedPath(target), filepath.Join("dir", "tmp-hatch.exe"); got != want {
		t.Errorf("StagedPath = %q, want %q", got, want)
	}
}

func TestSwap_WindowsPreparesExtension(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "hatch.exe")
	writeFile(t, target, []byte("old"), 0755)
	staged := filepath.Join(dir, "tmp-hatch")
	writeFile(t, staged, []byte("new"), 0644)

	s := NewSwapper(platform.Windows, filepath.Join(dir, CacheDirName))
	plan, err := s.Plan(target, staged)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Swap(plan); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if got := readFile(t, target); got != "new" {
		t.Errorf("target = %q, want %q", got, "new")
	}
	assertMissing(t, staged)
	assertMissing(t, staged+".exe")
}

func TestPlan_RejectsOtherDirectory(t *testing.T) {
	s := NewSwapper(platform.Linux, t.TempDir())
	if _, err := s.Plan(filepath.Join("a", "hatch"), filepath.Join("b", "tmp-hatch")); err == nil {
		t.Error("expected error for staged file outside the target directory")
	}
}

func TestRestore(t *testing.T) {
	s, plan := swapFixture(t, platform.Linux)
	if err := s.Swap(plan); err != nil {
		t.Fatal(err)
	}

	if err := s.Restore(plan.Target); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := readFile(t, plan.Target); got != "old" {
		t.Errorf("target = %q, want %q", got, "old")
	}
	assertMissing(t, plan.Rollback)
	assertMissing(t, s.StagedPath(plan.Target))
}

func TestRestore_NoRollback(t *testing.T) {
	dir := t.TempDir()
	s := NewSwapper(platform.Linux, filepath.Join(dir, CacheDirName))
	if err := s.Restore(filepath.Join(dir, "hatch")); !errors.Is(err, ErrSwapAborted) {
		t.Errorf("error = %v, want ErrSwapAborted", err)
	}
}
