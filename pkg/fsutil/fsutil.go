// Package fsutil writes result files and directories, optionally handing
// ownership to a configured UID:GID so reports produced as root stay
// readable by the invoking user.
package fsutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Owner is a parsed UID/GID pair.
type Owner struct {
	UID int
	GID int
}

// ParseOwner parses a "UID:GID" string. An empty string yields nil.
func ParseOwner(owner string) (*Owner, error) {
	if owner == "" {
		return nil, nil
	}

	uidStr, gidStr, ok := strings.Cut(owner, ":")
	if !ok || strings.Contains(gidStr, ":") {
		return nil, fmt.Errorf("invalid format %q, expected UID:GID", owner)
	}

	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", uidStr, err)
	}

	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid GID %q: %w", gidStr, err)
	}

	return &Owner{UID: uid, GID: gid}, nil
}

// Chown sets ownership if owner is not nil. Errors are ignored.
func Chown(path string, owner *Owner) {
	if owner == nil {
		return
	}

	_ = os.Chown(path, owner.UID, owner.GID)
}

// MkdirAll creates a directory tree and sets ownership on the leaf.
func MkdirAll(path string, owner *Owner) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	Chown(path, owner)

	return nil
}

// Create creates (or truncates) a file, creating its parent directory.
func Create(path string, owner *Owner) (*os.File, error) {
	if err := MkdirAll(filepath.Dir(path), owner); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	Chown(path, owner)

	return f, nil
}

// WriteFile writes data to path through a temporary file in the same
// directory, so readers never observe a partially written report.
func WriteFile(path string, data []byte, owner *Owner) error {
	dir := filepath.Dir(path)

	if err := MkdirAll(dir, owner); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	Chown(path, owner)

	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(path string, v any, owner *Owner) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}

	return WriteFile(path, append(data, '\n'), owner)
}
