package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/hatch-dev/hatch/internal/platform"
)

var (
	// Test seams for locating the running binary.
	osExecutable = os.Executable
	evalSymlinks = filepath.EvalSymlinks
)

// Config is the immutable description of what to update and where.
type Config struct {
	Owner          string
	Repo           string
	Assets         platform.AssetMap
	Platform       platform.Kind
	ExecutablePath string // defaults to the running binary
	WorkDir        string // holds the state file and staging dirs; defaults to "."
	StateFile      string // relative to WorkDir unless absolute; defaults to version.toml
}

// ReleaseSource resolves the latest release and its asset URLs.
type ReleaseSource interface {
	FetchLatest(ctx context.Context, owner, repo string) (*ReleaseDescriptor, error)
	AssetURL(owner, repo, tag, suffix string) string
}

// ArtifactFetcher downloads and unpacks release archives.
type ArtifactFetcher interface {
	Download(ctx context.Context, url string) (string, error)
	ExtractExecutable(archivePath, dest string) error
	Discard(paths ...string)
}

// OfflineDecider is asked whether to continue with the installed build when
// the network is unreachable. Returning false aborts the attempt.
type OfflineDecider func(ctx context.Context, local VersionRecord) (bool, error)

// Result describes a finished attempt. It is returned alongside errors too,
// with State set to StateFailed.
type Result struct {
	AttemptID       string
	State           State
	Previous        VersionRecord
	Current         VersionRecord
	Release         *ReleaseDescriptor
	Change          Change
	UpdateAvailable bool
	Unavailable     error // set by Check when the release cannot be installed here
}

// Updater sequences version check, download, swap and commit.
type Updater struct {
	cfg      Config
	store    *VersionStore
	resolver ReleaseSource
	fetcher  ArtifactFetcher
	swapper  *Swapper
	prober   Prober
	offline  OfflineDecider
	logger   *log.Logger
	observer func(State)
}

// Option configures an Updater.
type Option func(*Updater)

// WithStore overrides the VersionStore derived from Config.
func WithStore(s *VersionStore) Option {
	return func(u *Updater) { u.store = s }
}

// WithResolver sets the release source.
func WithResolver(r ReleaseSource) Option {
	return func(u *Updater) { u.resolver = r }
}

// WithFetcher sets the archive fetcher.
func WithFetcher(f ArtifactFetcher) Option {
	return func(u *Updater) { u.fetcher = f }
}

// WithSwapper sets the swapper.
func WithSwapper(s *Swapper) Option {
	return func(u *Updater) { u.swapper = s }
}

// WithProber sets the connectivity precheck.
func WithProber(p Prober) Option {
	return func(u *Updater) { u.prober = p }
}

// WithOfflineDecider sets the offline-continue callback. Without one, an
// unreachable network aborts the attempt.
func WithOfflineDecider(d OfflineDecider) Option {
	return func(u *Updater) { u.offline = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(u *Updater) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(State)) Option {
	return func(u *Updater) { u.observer = fn }
}

// New validates cfg and creates an Updater. Collaborators not supplied via
// options are built from cfg.
func New(cfg Config, opts ...Option) (*Updater, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("release owner and repo are required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFile
	}
	if !filepath.IsAbs(cfg.StateFile) {
		cfg.StateFile = filepath.Join(cfg.WorkDir, cfg.StateFile)
	}
	if cfg.ExecutablePath == "" {
		p, err := ExecutablePath()
		if err != nil {
			return nil, err
		}
		cfg.ExecutablePath = p
	}

	u := &Updater{cfg: cfg, logger: discardLogger()}
	for _, opt := range opts {
		opt(u)
	}

	if u.store == nil {
		u.store = NewVersionStore(cfg.StateFile)
	}
	if u.resolver == nil {
		u.resolver = NewResolver()
	}
	if u.fetcher == nil {
		u.fetcher = NewFetcher(cfg.WorkDir, WithFetcherLogger(u.logger))
	}
	if u.swapper == nil {
		u.swapper = NewSwapper(cfg.Platform, filepath.Join(cfg.WorkDir, CacheDirName), WithSwapperLogger(u.logger))
	}
	if u.prober == nil {
		host := defaultAPIHost
		if r, ok := u.resolver.(*Resolver); ok {
			host = r.APIHost()
		}
		p, err := NewDialProber(host)
		if err != nil {
			return nil, err
		}
		u.prober = p
	}
	if u.offline == nil {
		u.offline = func(context.Context, VersionRecord) (bool, error) { return false, nil }
	}
	return u, nil
}

// Config returns the resolved configuration.
func (u *Updater) Config() Config { return u.cfg }

// Store returns the version store.
func (u *Updater) Store() *VersionStore { return u.store }

// Swapper returns the swapper, used for manual rollback.
func (u *Updater) Swapper() *Swapper { return u.swapper }

// Check resolves the latest release and reports whether an update is
// available without downloading anything. A release that differs from the
// installed one but has no asset for this platform is reported through
// Result.Unavailable rather than as an available update.
func (u *Updater) Check(ctx context.Context) (*Result, error) {
	a := u.begin()
	done, err := a.resolve(ctx)
	if err != nil {
		return a.fail(err)
	}
	if done {
		return a.res, nil
	}
	suffix, err := a.assetSuffix()
	if err != nil {
		a.res.Unavailable = err
		return a.res, nil
	}
	a.res.Release.DownloadURL = a.resolver.AssetURL(a.cfg.Owner, a.cfg.Repo, a.res.Release.Tag, suffix)
	a.res.UpdateAvailable = true
	return a.res, nil
}

// Run performs a full attempt: check, download, extract, swap and commit.
// Only a successful swap is followed by saving the new VersionRecord.
func (u *Updater) Run(ctx context.Context) (*Result, error) {
	a := u.begin()

	lock, err := acquireLock(u.cfg.WorkDir, a.res.AttemptID)
	if err != nil {
		return a.fail(err)
	}
	defer func() {
		if err := lock.release(); err != nil {
			a.log.Warn("could not release lock", "error", err)
		}
	}()

	done, err := a.resolve(ctx)
	if err != nil {
		return a.fail(err)
	}
	if done {
		return a.res, nil
	}
	a.res.UpdateAvailable = true
	if err := a.install(ctx); err != nil {
		return a.fail(err)
	}
	return a.res, nil
}

type attempt struct {
	*Updater
	res *Result
	log *log.Logger
}

func (u *Updater) begin() *attempt {
	id := uuid.NewString()
	return &attempt{
		Updater: u,
		res:     &Result{AttemptID: id, State: StateIdle},
		log:     u.logger.With("attempt", id),
	}
}

func (a *attempt) enter(s State) {
	a.log.Debug("state", "from", a.res.State, "to", s)
	a.res.State = s
	if a.observer != nil {
		a.observer(s)
	}
}

func (a *attempt) fail(err error) (*Result, error) {
	a.log.Debug("update failed", "state", a.res.State, "kind", KindOf(err), "error", err)
	a.enter(StateFailed)
	return a.res, err
}

// resolve loads the local record, checks connectivity and compares against
// the latest release. done is true when the attempt ends without an install.
func (a *attempt) resolve(ctx context.Context) (done bool, err error) {
	local, err := a.store.current()
	if err != nil {
		return false, err
	}
	a.res.Previous = local
	a.res.Current = local

	a.enter(StateCheckingConnectivity)
	if probeErr := a.prober.Probe(ctx); probeErr != nil {
		if !local.Installed() {
			return false, newError(KindInitialInstallRequiresNetwork, "no installed build to fall back to", probeErr)
		}
		a.log.Warn("network unreachable", "error", probeErr)
		ok, err := a.offline(ctx, local)
		if err != nil {
			return false, newError(KindUserAborted, "offline prompt failed", err)
		}
		if !ok {
			return false, newError(KindUserAborted, "declined to continue offline", probeErr)
		}
		a.enter(StateOffline)
		return true, nil
	}

	a.enter(StateResolvingRelease)
	remote, err := a.resolver.FetchLatest(ctx, a.cfg.Owner, a.cfg.Repo)
	if err != nil {
		return false, err
	}
	a.res.Release = remote
	a.res.Change = DescribeChange(local, remote.Tag)

	if !NeedsUpdate(local, remote) {
		a.log.Info("up to date", "release", remote.Tag, "id", remote.RemoteID)
		a.enter(StateUpToDate)
		return true, nil
	}
	a.log.Info("update available", "from", local.Label, "to", remote.Tag, "change", a.res.Change)
	return false, nil
}

// assetSuffix resolves the release asset for the configured platform.
func (a *attempt) assetSuffix() (string, error) {
	kind := a.cfg.Platform
	if !kind.Supported() {
		return "", newError(KindUnsupportedPlatform, "no update support for "+kind.String(), nil)
	}
	suffix, err := platform.AssetSuffixFor(kind, a.cfg.Assets)
	if err != nil {
		return "", newError(KindUnsupportedPlatform, "no binary available for "+kind.String(), err)
	}
	return suffix, nil
}

func (a *attempt) install(ctx context.Context) error {
	remote := a.res.Release
	suffix, err := a.assetSuffix()
	if err != nil {
		return err
	}
	remote.DownloadURL = a.resolver.AssetURL(a.cfg.Owner, a.cfg.Repo, remote.Tag, suffix)

	a.enter(StateDownloading)
	archive, err := a.fetcher.Download(ctx, remote.DownloadURL)
	if err != nil {
		return err
	}
	defer a.fetcher.Discard(archive)

	a.enter(StateExtracting)
	staged := a.swapper.StagedPath(a.cfg.ExecutablePath)
	if err := a.fetcher.ExtractExecutable(archive, staged); err != nil {
		return err
	}
	plan, err := a.swapper.Plan(a.cfg.ExecutablePath, staged)
	if err != nil {
		a.fetcher.Discard(staged)
		return err
	}
	plan.Record = a.recordRollback
	// Last point at which cancellation is honored; the swap runs to completion.
	if err := ctx.Err(); err != nil {
		a.fetcher.Discard(staged)
		return fmt.Errorf("update cancelled before swap: %w", err)
	}

	a.enter(StateSwapping)
	if err := a.swapper.Swap(plan); err != nil {
		if !errors.Is(err, ErrSwapIncomplete) {
			a.fetcher.Discard(staged)
		}
		return err
	}

	next := VersionRecord{ID: remote.RemoteID, Label: remote.Tag}
	if err := a.store.Save(next); err != nil {
		return err
	}
	a.res.Current = next
	a.log.Info("update committed", "release", next.Label, "id", next.ID, "rollback", plan.Rollback)
	a.enter(StateCommitted)
	return nil
}

// ExecutablePath returns the absolute, symlink-resolved path of the running
// binary.
func ExecutablePath() (string, error) {
	p, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("determining executable path: %w", err)
	}
	resolved, err := evalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", p, err)
	}
	return resolved, nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
