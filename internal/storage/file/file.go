// internal/storage/file/file.go
package file

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caleywoods/wayfindr/internal/util"
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds file backend configuration.
type Config struct {
	DataDir  string
	Format   string
	Compress bool
}

// Backend stores one file per session key under DataDir. Every write
// replaces the whole file.
type Backend struct {
	cfg Config
}

// New creates a new file backend.
func New(cfg Config) *Backend {
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	return &Backend{cfg: cfg}
}

// Init validates the format and creates the data directory.
func (b *Backend) Init() error {
	switch b.cfg.Format {
	case FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("unknown file format: %s", b.cfg.Format)
	}
	if err := os.MkdirAll(b.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// Close is a no-op; files are closed after every operation.
func (b *Backend) Close() error {
	return nil
}

// Path returns the file that holds the set for key.
func (b *Backend) Path(key string) string {
	name := util.SafeFileName(key) + "." + b.cfg.Format
	if b.cfg.Compress {
		name += ".zst"
	}
	return filepath.Join(b.cfg.DataDir, name)
}

// Read loads the set for key. A missing or empty file yields (nil, nil).
func (b *Backend) Read(key string) ([]core.Waypoint, error) {
	path := b.Path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	if b.cfg.Compress {
		data, err = decompress(data)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", path, err)
		}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var list []core.Waypoint
	switch b.cfg.Format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &list)
	default:
		err = json.Unmarshal(data, &list)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range list {
		if list[i].Dimension == "" {
			list[i].Dimension = core.DefaultDimension
		}
	}
	return list, nil
}

// Write replaces the set for key. The file is written to a temporary name
// first and renamed so a crash never leaves a truncated file behind.
func (b *Backend) Write(key string, list []core.Waypoint) error {
	if list == nil {
		list = []core.Waypoint{}
	}

	var data []byte
	var err error
	switch b.cfg.Format {
	case FormatYAML:
		data, err = yaml.Marshal(list)
	default:
		data, err = json.MarshalIndent(list, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode waypoints: %w", err)
	}
	if b.cfg.Compress {
		if data, err = compress(data); err != nil {
			return fmt.Errorf("compress waypoints: %w", err)
		}
	}

	path := b.Path(key)
	tmp, err := os.CreateTemp(b.cfg.DataDir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
