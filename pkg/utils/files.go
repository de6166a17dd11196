package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"

	"github.com/yorozuya-cybersecurity/bome/internal/schema"
)

var ErrEmptyFile = errors.New("file is empty")

// isYAML decides the BOM encoding from the file extension; anything else is JSON
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadBOM reads a persisted BOM. Missing, unreadable or malformed files are errors.
func LoadBOM(path string) (schema.BOM, error) {
	var bom schema.BOM
	data, err := os.ReadFile(path)
	if err != nil {
		return bom, fmt.Errorf("read bome: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return bom, fmt.Errorf("read bome %s: %w", path, ErrEmptyFile)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, &bom)
	} else {
		err = json.Unmarshal(data, &bom)
	}
	if err != nil {
		return bom, fmt.Errorf("parse bome %s: %w", path, err)
	}
	return bom, nil
}

// SaveBOM writes bom in the encoding implied by path's extension
func SaveBOM(bom schema.BOM, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(bom)
	} else {
		data, err = json.Marshal(bom)
		data = pretty.Pretty(data)
	}
	if err != nil {
		return fmt.Errorf("encode bome: %w", err)
	}
	return WriteFileAtomic(path, data, 0644)
}

// WriteDocument encodes v as JSON, optionally indented, and writes it atomically
func WriteDocument(v any, path string, indent bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if indent {
		data = pretty.Pretty(data)
	} else {
		data = append(data, '\n')
	}
	return WriteFileAtomic(path, data, 0644)
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
