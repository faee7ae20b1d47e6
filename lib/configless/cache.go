// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package configless

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrVolatileUnsupported is returned by MaterializeVolatile on
// platforms without anonymous memory files.
var ErrVolatileUnsupported = errors.New("configless: anonymous memory files not supported on this platform")

// CacheError reports a failed read or write of one cached blob.
type CacheError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("config cache %s (%s): %v", e.Kind, e.Path, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Persist writes every present blob in bundle to its fixed filename in
// dir, replacing prior content. The directory must exist. The first
// failure stops the write and is returned as a *CacheError; files
// written earlier in the call stay on disk.
func Persist(bundle *Bundle, dir string) error {
	for _, kind := range bundle.Present() {
		path := filepath.Join(dir, kind.Filename())
		if err := writeBlob(path, *bundle.Get(kind)); err != nil {
			return &CacheError{Kind: kind, Path: path, Err: err}
		}
	}
	return nil
}

func writeBlob(path, content string) error {
	// os.OpenFile always adds O_CLOEXEC.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load reads every kind's file from dir. A missing file leaves that
// kind absent; any other read failure is a *CacheError.
func Load(dir string) (*Bundle, error) {
	bundle := &Bundle{}
	for _, kind := range Kinds() {
		path := filepath.Join(dir, kind.Filename())
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &CacheError{Kind: kind, Path: path, Err: err}
		}
		content := string(data)
		bundle.Set(kind, &content)
	}
	return bundle, nil
}
