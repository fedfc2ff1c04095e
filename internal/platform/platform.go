package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Kind identifies an operating system family the updater knows how to serve.
type Kind int

const (
	Unsupported Kind = iota
	Windows
	Linux
	MacOS
)

var (
	// ErrAssetNotFound means no release archive is configured for a platform.
	// Callers treat it as "no binary available for this OS", not as a crash.
	ErrAssetNotFound = errors.New("no release asset configured for platform")

	// ErrUnsupported is returned by operations whose behavior is undefined for
	// an unknown platform.
	ErrUnsupported = errors.New("unsupported platform")
)

// AssetMap maps a platform to the archive-name suffix published for it,
// e.g. Windows → "x86_64-pc-windows-gnu.zip".
type AssetMap map[Kind]string

// Current returns the Kind of the running process.
func Current() Kind {
	return FromGOOS(runtime.GOOS)
}

// FromGOOS maps a GOOS value to a Kind.
func FromGOOS(goos string) Kind {
	switch goos {
	case "windows":
		return Windows
	case "linux":
		return Linux
	case "darwin":
		return MacOS
	default:
		return Unsupported
	}
}

// ParseKind accepts the names used in configuration files. Both "macos" and
// "darwin" select MacOS.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows":
		return Windows, nil
	case "linux":
		return Linux, nil
	case "macos", "darwin":
		return MacOS, nil
	}
	return Unsupported, fmt.Errorf("%w: %q", ErrUnsupported, s)
}

func (k Kind) String() string {
	switch k {
	case Windows:
		return "windows"
	case Linux:
		return "linux"
	case MacOS:
		return "macos"
	default:
		return "unsupported"
	}
}

// Supported reports whether the updater defines swap behavior for k.
func (k Kind) Supported() bool {
	return k == Windows || k == Linux || k == MacOS
}

// AssetSuffixFor looks up the configured archive suffix for k.
func AssetSuffixFor(k Kind, assets AssetMap) (string, error) {
	suffix, ok := assets[k]
	if !ok || strings.TrimSpace(suffix) == "" {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, k)
	}
	return suffix, nil
}

// RequiresExecutableExtension is true only for Windows, whose loader needs the
// .exe suffix on the file it executes.
func (k Kind) RequiresExecutableExtension() bool {
	return k == Windows
}

// ExecutableName returns name with the loader-recognized suffix for k.
func (k Kind) ExecutableName(name string) string {
	if k.RequiresExecutableExtension() && !strings.EqualFold(filepath.Ext(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// PrepareExecutable makes a freshly extracted binary runnable on k and returns
// its (possibly renamed) path. On Windows the file is renamed to carry the
// .exe suffix; on Linux and macOS the execute bits are set.
func (k Kind) PrepareExecutable(path string) (string, error) {
	switch k {
	case Windows:
		named := k.ExecutableName(path)
		if named == path {
			return path, nil
		}
		if err := os.Rename(path, named); err != nil {
			return "", fmt.Errorf("naming staged executable: %w", err)
		}
		return named, nil
	case Linux, MacOS:
		if err := Chmod(path, ExecutableMode); err != nil {
			return "", fmt.Errorf("marking staged executable: %w", err)
		}
		return path, nil
	default:
		return "", fmt.Errorf("%w: cannot prepare %s", ErrUnsupported, path)
	}
}
