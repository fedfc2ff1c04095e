package updater

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/hatch-dev/hatch/internal/platform"
)

// RollbackName is the file the previous executable is parked under inside
// version-cache. It has no extension on any platform so a stale copy cannot
// be launched by double-clicking it.
const RollbackName = "last"

// stagedPrefix is prepended to the target's base name for the staged binary.
const stagedPrefix = "tmp-"

// SwapPlan names the three paths involved in replacing the executable.
type SwapPlan struct {
	Target   string // running executable, P
	Staged   string // extracted replacement, S, in the same directory as P
	Rollback string // version-cache/last

	// Record runs once Target has been moved to Rollback and before
	// promotion. An error moves Target back and aborts the swap.
	Record func() error
}

// Swapper replaces the running executable with a staged one by renames only.
type Swapper struct {
	kind     platform.Kind
	cacheDir string
	rename   func(oldpath, newpath string) error
	logger   *log.Logger
}

// SwapperOption configures a Swapper.
type SwapperOption func(*Swapper)

// WithRenameFunc replaces os.Rename, letting tests inject failures between
// the cache-out and promote steps.
func WithRenameFunc(fn func(oldpath, newpath string) error) SwapperOption {
	return func(s *Swapper) {
		s.rename = fn
	}
}

// WithSwapperLogger sets the logger.
func WithSwapperLogger(l *log.Logger) SwapperOption {
	return func(s *Swapper) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSwapper creates a Swapper for kind that keeps rollback copies in cacheDir.
func NewSwapper(kind platform.Kind, cacheDir string, opts ...SwapperOption) *Swapper {
	s := &Swapper{
		kind:     kind,
		cacheDir: cacheDir,
		rename:   os.Rename,
		logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RollbackPath returns where the previous executable is kept.
func (s *Swapper) RollbackPath() string {
	return filepath.Join(s.cacheDir, RollbackName)
}

// StagedPath returns where a replacement for target should be extracted. It
// sits next to target because a rename across filesystems is not atomic.
func (s *Swapper) StagedPath(target string) string {
	dir, base := filepath.Split(target)
	return filepath.Join(dir, s.kind.ExecutableName(stagedPrefix+base))
}

// Plan validates the paths for a swap of target by staged.
func (s *Swapper) Plan(target, staged string) (SwapPlan, error) {
	if !s.kind.Supported() {
		return SwapPlan{}, pathError(KindUnsupportedPlatform, target, "refusing to swap on "+s.kind.String(), nil)
	}
	if filepath.Clean(filepath.Dir(staged)) != filepath.Clean(filepath.Dir(target)) {
		return SwapPlan{}, fmt.Errorf("staged executable %s must be in the same directory as %s", staged, target)
	}
	return SwapPlan{Target: target, Staged: staged, Rollback: s.RollbackPath()}, nil
}

// Swap performs the plan:
//
//  1. cache-out: rename Target to Rollback
//  2. promote: rename Staged to Target
//
// Before step 1 the staged file is made runnable for the platform, and
// between the steps plan.Record is called if set. A failure
// in step 1 leaves Target untouched and returns ErrSwapAborted. A failure in
// step 2 leaves no file at Target and returns ErrSwapIncomplete; the previous
// executable is still at Rollback and must be restored by the caller.
func (s *Swapper) Swap(plan SwapPlan) error {
	if !s.kind.Supported() {
		return pathError(KindUnsupportedPlatform, plan.Target, "refusing to swap on "+s.kind.String(), nil)
	}

	staged, err := s.kind.PrepareExecutable(plan.Staged)
	if err != nil {
		return pathError(KindSwapAborted, plan.Staged, "preparing staged executable", err)
	}
	plan.Staged = staged

	if err := os.MkdirAll(filepath.Dir(plan.Rollback), 0755); err != nil {
		return pathError(KindSwapAborted, plan.Rollback, "creating rollback directory", err)
	}
	// Windows refuses to rename onto an existing file.
	if err := os.Remove(plan.Rollback); err != nil && !errors.Is(err, os.ErrNotExist) {
		return pathError(KindSwapAborted, plan.Rollback, "removing stale rollback copy", err)
	}

	if err := s.rename(plan.Target, plan.Rollback); err != nil {
		return pathError(KindSwapAborted, plan.Target, "moving running executable aside", err)
	}
	s.logger.Debug("cache-out complete", "from", plan.Target, "to", plan.Rollback)

	if plan.Record != nil {
		if err := plan.Record(); err != nil {
			if backErr := s.rename(plan.Rollback, plan.Target); backErr != nil {
				return &Error{
					Kind: KindSwapIncomplete,
					Path: plan.Target,
					Msg:  fmt.Sprintf("no executable at target; restore it from %s", plan.Rollback),
					Err:  errors.Join(err, backErr),
				}
			}
			return pathError(KindSwapAborted, plan.Rollback, "recording rollback version", err)
		}
	}

	if err := s.rename(plan.Staged, plan.Target); err != nil {
		return &Error{
			Kind: KindSwapIncomplete,
			Path: plan.Target,
			Msg:  fmt.Sprintf("no executable at target; restore it from %s", plan.Rollback),
			Err:  err,
		}
	}
	s.logger.Debug("promote complete", "from", plan.Staged, "to", plan.Target)
	return nil
}

// Restore moves the rollback copy back to target. An executable currently at
// target is parked under the staged name first and removed once the restore
// succeeds; if the restore fails it is moved back.
func (s *Swapper) Restore(target string) error {
	rollback := s.RollbackPath()
	if _, err := os.Stat(rollback); err != nil {
		return pathError(KindSwapAborted, rollback, "no rollback copy", err)
	}

	parked := ""
	if _, err := os.Stat(target); err == nil {
		parked = s.StagedPath(target)
		_ = os.Remove(parked)
		if err := s.rename(target, parked); err != nil {
			return pathError(KindSwapAborted, target, "moving current executable aside", err)
		}
	}

	if err := s.rename(rollback, target); err != nil {
		if parked != "" {
			if backErr := s.rename(parked, target); backErr != nil {
				return &Error{Kind: KindSwapIncomplete, Path: target, Msg: "restore failed and current executable left at " + parked, Err: err}
			}
		}
		return pathError(KindSwapAborted, rollback, "restoring rollback copy", err)
	}

	if parked != "" {
		if err := os.Remove(parked); err != nil {
			s.logger.Warn("could not remove replaced executable", "path", parked, "error", err)
		}
	}
	if err := platform.Chmod(target, platform.ExecutableMode); err != nil {
		s.logger.Warn("could not mark restored executable", "path", target, "error", err)
	}
	return nil
}
