// Package cache stores build outputs in content-addressed directories. Each
// entry lives under an 8-character sha256 prefix, is written under a file
// lock and is only visible once its .hash marker holds the full digest.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	EnvVar = "NITROCACHE"

	buildDir     = "build"
	manifestFile = "manifest.mp"
	hashFile     = ".hash"
	lockFile     = ".lock"

	// Increment when Manifest changes shape.
	schemaVersion uint16 = 1
)

// DefaultDir returns $NITROCACHE, or the platform cache directory.
func DefaultDir() string {
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}

	homeDir, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			return filepath.Join(localAppData, "nitro")
		}
		return filepath.Join(homeDir, "AppData", "Local", "nitro")
	case "darwin":
		return filepath.Join(homeDir, "Library", "Caches", "nitro")
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "nitro")
		}
		return filepath.Join(homeDir, ".cache", "nitro")
	}
}

// Key addresses one cache entry.
type Key struct {
	Short string // directory name
	Full  string // completion marker contents
}

// NewKey hashes the inputs together with the schema version and platform.
// Inputs are length-prefixed so that ("ab", "c") and ("a", "bc") differ.
func NewKey(inputs ...[]byte) Key {
	h := sha256.New()
	var n [8]byte
	binary.LittleEndian.PutUint16(n[:2], schemaVersion)
	h.Write(n[:2])
	h.Write([]byte(runtime.GOOS))
	h.Write([]byte(runtime.GOARCH))
	for _, in := range inputs {
		binary.LittleEndian.PutUint64(n[:], uint64(len(in)))
		h.Write(n[:])
		h.Write(in)
	}
	full := hex.EncodeToString(h.Sum(nil))
	return Key{Short: full[:8], Full: full}
}

// Manifest describes a stored entry.
type Manifest struct {
	Schema    uint16
	Source    string
	Artifacts []string
	Types     []string
	Created   int64
}

type Cache struct {
	dir string
}

// Open prepares the build directory under dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(dir, buildDir), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) root() string { return filepath.Join(c.dir, buildDir) }

// Dir returns the entry directory of k.
func (c *Cache) Dir(k Key) string { return filepath.Join(c.root(), k.Short) }

func (c *Cache) lock() *flock.Flock {
	return flock.New(filepath.Join(c.root(), lockFile))
}

// Load returns the manifest of a complete entry. A missing, partial or
// colliding entry reports false.
func (c *Cache) Load(k Key) (*Manifest, bool, error) {
	lock := c.lock()
	if err := lock.RLock(); err != nil {
		return nil, false, fmt.Errorf("acquire cache lock: %w", err)
	}
	defer lock.Unlock()

	dir := c.Dir(k)
	stored, err := os.ReadFile(filepath.Join(dir, hashFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if string(stored) != k.Full {
		return nil, false, nil
	}

	f, err := os.Open(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	var m Manifest
	if err := msgpack.NewDecoder(f).Decode(&m); err != nil {
		return nil, false, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Schema != schemaVersion {
		return nil, false, nil
	}
	for _, a := range m.Artifacts {
		if _, err := os.Stat(filepath.Join(dir, a)); err != nil {
			return nil, false, nil
		}
	}
	return &m, true, nil
}

// Store writes the artifacts and the manifest of k, replacing any previous
// entry. The .hash marker is written last and acts as the completion flag.
func (c *Cache) Store(k Key, m *Manifest, artifacts map[string][]byte) error {
	lock := c.lock()
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	defer lock.Unlock()

	dir := c.Dir(k)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	names := make([]string, 0, len(artifacts))
	for name, data := range artifacts {
		if name != filepath.Base(name) || name == manifestFile || name == hashFile {
			return fmt.Errorf("invalid artifact name %q", name)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write artifact: %w", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	m.Schema = schemaVersion
	m.Artifacts = names
	if m.Created == 0 {
		m.Created = time.Now().Unix()
	}
	if err := writeManifest(dir, m); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, hashFile), []byte(k.Full), 0o644); err != nil {
		return fmt.Errorf("write hash file: %w", err)
	}
	return nil
}

func writeManifest(dir string, m *Manifest) error {
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), filepath.Join(dir, manifestFile))
}

// isHashDir reports whether name is an 8-char hex string, as Key.Short is.
func isHashDir(name string) bool {
	if len(name) != 8 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}

// Prune removes old entries. It keeps at least keep of the most recent and
// only deletes entries older than minAge, so a concurrent build still
// reading its entry is not disturbed. It returns the removed directories.
func (c *Cache) Prune(keep int, minAge time.Duration) ([]string, error) {
	lock := c.lock()
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	defer lock.Unlock()

	entries, err := os.ReadDir(c.root())
	if err != nil {
		return nil, err
	}

	type dirInfo struct {
		name  string
		mtime time.Time
	}
	var dirs []dirInfo
	for _, e := range entries {
		if e.IsDir() && isHashDir(e.Name()) {
			if info, err := e.Info(); err == nil {
				dirs = append(dirs, dirInfo{e.Name(), info.ModTime()})
			}
		}
	}
	if len(dirs) <= keep {
		return nil, nil
	}

	cutoff := time.Now().Add(-minAge)
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mtime.Before(dirs[j].mtime) })
	var removed []string
	var errs []error
	for i := 0; i < len(dirs)-keep; i++ {
		if !dirs[i].mtime.Before(cutoff) {
			continue
		}
		path := filepath.Join(c.root(), dirs[i].name)
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("remove old entry %s: %w", path, err))
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
