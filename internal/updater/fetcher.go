package updater

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// TmpDirName holds downloaded archives while an attempt runs.
	TmpDirName = "version-tmp"
	// CacheDirName holds the rollback copy of the previous executable.
	CacheDirName = "version-cache"

	// maxBinaryBytes is the upper bound on an extracted executable (512 MiB).
	maxBinaryBytes = 512 << 20
)

// StagingArtifact is the on-disk output of one fetch.
type StagingArtifact struct {
	ArchivePath    string
	ExecutablePath string
}

// Fetcher downloads release archives into the staging area and extracts the
// executable payload.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	workDir    string
	progress   io.Writer
	logger     *log.Logger
	printer    *message.Printer
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherHTTPClient sets a custom HTTP client (useful for testing).
func WithFetcherHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithFetcherUserAgent sets the User-Agent sent with asset downloads.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithProgress reports download progress to w.
func WithProgress(w io.Writer) FetcherOption {
	return func(f *Fetcher) {
		f.progress = w
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *log.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a Fetcher whose staging directories live in workDir.
func NewFetcher(workDir string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: http.DefaultClient,
		userAgent:  defaultUserAgent,
		workDir:    workDir,
		progress:   io.Discard,
		logger:     discardLogger(),
		printer:    message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// TmpDir returns the download scratch directory.
func (f *Fetcher) TmpDir() string { return filepath.Join(f.workDir, TmpDirName) }

// CacheDir returns the rollback directory.
func (f *Fetcher) CacheDir() string { return filepath.Join(f.workDir, CacheDirName) }

// EnsureStaging creates version-tmp and version-cache if they are missing.
func (f *Fetcher) EnsureStaging() error {
	for _, dir := range []string{f.TmpDir(), f.CacheDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating staging directory %s: %w", dir, err)
		}
	}
	return nil
}

// Download streams the archive at url into version-tmp and returns its path.
// A partially written file is removed on failure.
func (f *Fetcher) Download(ctx context.Context, url string) (_ string, err error) {
	if err := f.EnsureStaging(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", urlError(KindAssetUnavailable, url, "creating download request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", urlError(KindAssetUnavailable, url, "downloading archive", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", urlError(KindAssetUnavailable, url, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	out, err := os.CreateTemp(f.TmpDir(), "download-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	path := out.Name()
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing download file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	total := resp.ContentLength
	var downloaded int64
	lastPercent := -1

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return "", fmt.Errorf("writing download: %w", writeErr)
			}
			downloaded += int64(n)
			if total > 0 {
				percent := int(downloaded * 100 / total)
				if percent != lastPercent {
					fmt.Fprintf(f.progress, "\rDownloading... %d%%", percent)
					lastPercent = percent
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", urlError(KindAssetUnavailable, url, "reading download stream", readErr)
		}
	}
	if total > 0 {
		fmt.Fprintln(f.progress)
	}
	if total > 0 && downloaded != total {
		return "", urlError(KindAssetUnavailable, url, f.printer.Sprintf("short download: got %d of %d bytes", downloaded, total), nil)
	}

	f.logger.Debug("archive downloaded", "url", url, "bytes", f.printer.Sprintf("%d", downloaded))
	return path, nil
}

// ExtractExecutable writes the payload of the zip at archivePath to dest.
//
// Release packaging guarantees the archive holds exactly one regular file, the
// executable, at index 0. Anything else is reported as a corrupt archive
// rather than guessed at.
func (f *Fetcher) ExtractExecutable(archivePath, dest string) (err error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return pathError(KindCorruptArchive, archivePath, "opening zip archive", err)
	}
	defer r.Close()

	switch len(r.File) {
	case 0:
		return pathError(KindCorruptArchive, archivePath, "archive is empty", nil)
	case 1:
	default:
		return pathError(KindCorruptArchive, archivePath, fmt.Sprintf("expected 1 entry, found %d", len(r.File)), nil)
	}

	entry := r.File[0]
	if entry.FileInfo().IsDir() {
		return pathError(KindCorruptArchive, archivePath, fmt.Sprintf("entry %q is a directory", entry.Name), nil)
	}
	if entry.UncompressedSize64 > maxBinaryBytes {
		return pathError(KindCorruptArchive, archivePath, f.printer.Sprintf("entry %q exceeds %d bytes", entry.Name, maxBinaryBytes), nil)
	}

	rc, err := entry.Open()
	if err != nil {
		return pathError(KindCorruptArchive, archivePath, "opening zip entry", err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("creating staged executable: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing staged executable: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	n, err := io.Copy(out, io.LimitReader(rc, maxBinaryBytes+1))
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			return fmt.Errorf("writing staged executable: %w", err)
		}
		return pathError(KindCorruptArchive, archivePath, "extracting executable", err)
	}
	if n > maxBinaryBytes {
		return pathError(KindCorruptArchive, archivePath, "executable exceeds size limit", nil)
	}

	f.logger.Debug("executable extracted", "entry", entry.Name, "dest", dest, "bytes", f.printer.Sprintf("%d", n))
	return nil
}

// Discard removes staging leftovers. Missing files are ignored.
func (f *Fetcher) Discard(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("could not remove staging file", "path", p, "error", err)
		}
	}
}
