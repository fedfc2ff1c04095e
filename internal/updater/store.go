package updater

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultStateFile is the state file name inside the work directory.
const DefaultStateFile = "version.toml"

// VersionRecord is the locally installed release. ID 0 means nothing has been
// installed yet.
type VersionRecord struct {
	ID    int64  `toml:"id"`
	Label string `toml:"label"`
}

// DefaultRecord is written when no state file exists.
func DefaultRecord() VersionRecord {
	return VersionRecord{ID: 0, Label: "unset"}
}

// Installed reports whether the record refers to a real release.
func (r VersionRecord) Installed() bool {
	return r.ID != 0
}

func (r VersionRecord) String() string {
	return fmt.Sprintf("%s (#%d)", r.Label, r.ID)
}

type stateDocument struct {
	Version VersionRecord `toml:"version"`
}

// versionTable mirrors VersionRecord with pointers so missing keys can be told
// apart from zero values on load.
type versionTable struct {
	ID    *int64  `toml:"id"`
	Label *string `toml:"label"`
}

type rawDocument struct {
	Version *versionTable `toml:"version"`
}

// VersionStore persists the VersionRecord as a TOML document.
type VersionStore struct {
	path string
}

// NewVersionStore returns a store backed by the file at path.
func NewVersionStore(path string) *VersionStore {
	return &VersionStore{path: path}
}

// Path returns the state file location.
func (s *VersionStore) Path() string {
	return s.path
}

// Load reads the state file. A missing file is created with DefaultRecord.
func (s *VersionStore) Load() (VersionRecord, error) {
	rec, err := s.peek()
	if errors.Is(err, os.ErrNotExist) {
		rec = DefaultRecord()
		if err := s.Save(rec); err != nil {
			return VersionRecord{}, err
		}
		return rec, nil
	}
	return rec, err
}

// peek reads the state file like Load but never writes. A missing file is
// reported as DefaultRecord with an error wrapping os.ErrNotExist.
func (s *VersionStore) peek() (VersionRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultRecord(), err
	}
	if err != nil {
		return VersionRecord{}, pathError(KindPersistenceFailed, s.path, "reading state file", err)
	}

	var doc rawDocument
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return VersionRecord{}, pathError(KindConfigCorrupt, s.path, "parsing state file", err)
	}

	switch {
	case doc.Version == nil:
		return VersionRecord{}, pathError(KindConfigCorrupt, s.path, "missing [version] table", nil)
	case doc.Version.ID == nil:
		return VersionRecord{}, pathError(KindConfigCorrupt, s.path, "missing version.id", nil)
	case doc.Version.Label == nil:
		return VersionRecord{}, pathError(KindConfigCorrupt, s.path, "missing version.label", nil)
	case *doc.Version.ID < 0:
		return VersionRecord{}, pathError(KindConfigCorrupt, s.path, fmt.Sprintf("negative version.id %d", *doc.Version.ID), nil)
	}

	return VersionRecord{ID: *doc.Version.ID, Label: *doc.Version.Label}, nil
}

// current reads the record without creating the state file. A missing file
// yields DefaultRecord; the file is first written when an install commits.
func (s *VersionStore) current() (VersionRecord, error) {
	rec, err := s.peek()
	if errors.Is(err, os.ErrNotExist) {
		return rec, nil
	}
	return rec, err
}

// Save replaces the state file with r. The record is written to a temporary
// file in the same directory and renamed into place, so a failed save leaves
// the previous file readable.
func (s *VersionStore) Save(r VersionRecord) error {
	if r.ID < 0 {
		return pathError(KindPersistenceFailed, s.path, fmt.Sprintf("refusing to save negative id %d", r.ID), nil)
	}

	data, err := toml.Marshal(stateDocument{Version: r})
	if err != nil {
		return pathError(KindPersistenceFailed, s.path, "encoding state", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return pathError(KindPersistenceFailed, s.path, "creating state directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".version-*.toml")
	if err != nil {
		return pathError(KindPersistenceFailed, s.path, "creating temp state file", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return pathError(KindPersistenceFailed, s.path, "writing temp state file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return pathError(KindPersistenceFailed, s.path, "syncing temp state file", err)
	}
	if err := tmp.Close(); err != nil {
		return pathError(KindPersistenceFailed, s.path, "closing temp state file", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return pathError(KindPersistenceFailed, s.path, "setting state file mode", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return pathError(KindPersistenceFailed, s.path, "replacing state file", err)
	}
	committed = true
	return nil
}
