// Package memzone implements an in-memory storage zone that follows the
// observable contract of the Bunny Edge Storage API: uploads create missing
// parent directories, directory listings include sub-directories, and deleting
// a directory removes everything below it.
package memzone

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bunnystorage/storage_sdk_go/internal/devseed"
)

var (
	// ErrNotFound indicates the object or directory does not exist.
	ErrNotFound = errors.New("memzone: not found")
	// ErrInvalidPath indicates the path cannot address an object, e.g. it is
	// empty or collides with an existing directory or object.
	ErrInvalidPath = errors.New("memzone: invalid path")
)

// Option configures a Zone.
type Option func(*Zone)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(z *Zone) {
		if now != nil {
			z.now = now
		}
	}
}

// WithServerID sets the ServerId reported in listings.
func WithServerID(id int) Option {
	return func(z *Zone) {
		z.serverID = id
	}
}

type object struct {
	guid        string
	data        []byte
	contentType string
	checksum    string
	created     time.Time
	changed     time.Time
	lastRead    time.Time
}

type directory struct {
	guid    string
	created time.Time
	changed time.Time
}

// Zone is a concurrency-safe in-memory storage zone.
type Zone struct {
	name     string
	serverID int
	now      func() time.Time

	mu      sync.RWMutex
	objects map[string]*object
	dirs    map[string]*directory
}

// New constructs an empty zone called name.
func New(name string, opts ...Option) *Zone {
	z := &Zone{
		name:    name,
		objects: make(map[string]*object),
		dirs:    make(map[string]*directory),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Name returns the storage zone name.
func (z *Zone) Name() string {
	return z.name
}

// Seed stores every entry, creating directories as needed.
func (z *Zone) Seed(entries []devseed.Entry) error {
	for _, e := range entries {
		data, err := e.Data()
		if err != nil {
			return err
		}
		if _, err := z.Put(context.Background(), e.Path, data, e.ContentType); err != nil {
			return fmt.Errorf("memzone: seed %q: %w", e.Path, err)
		}
	}
	return nil
}

// Put stores data at path, replacing any existing object and creating all
// missing parent directories.
func (z *Zone) Put(ctx context.Context, path string, data []byte, contentType string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	key := Clean(path)
	if key == "" {
		return Entry{}, fmt.Errorf("%w: object name is empty", ErrInvalidPath)
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	if _, isDir := z.dirs[key]; isDir {
		return Entry{}, fmt.Errorf("%w: %q is a directory", ErrInvalidPath, key)
	}
	parents := ancestors(key)
	for _, p := range parents {
		if _, isObj := z.objects[p]; isObj {
			return Entry{}, fmt.Errorf("%w: %q is an object", ErrInvalidPath, p)
		}
	}

	now := z.now()
	for _, p := range parents {
		if _, ok := z.dirs[p]; !ok {
			z.dirs[p] = &directory{guid: uuid.NewString(), created: now, changed: now}
		}
	}
	if len(parents) > 0 {
		z.dirs[parents[len(parents)-1]].changed = now
	}

	sum := sha256.Sum256(data)
	obj, ok := z.objects[key]
	if !ok {
		obj = &object{guid: uuid.NewString(), created: now}
		z.objects[key] = obj
	}
	obj.data = append([]byte(nil), data...)
	obj.contentType = contentType
	obj.checksum = strings.ToUpper(hex.EncodeToString(sum[:]))
	obj.changed = now

	return z.objectEntry(key, obj), nil
}

// Get returns a copy of the object stored at path.
func (z *Zone) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := Clean(path)

	z.mu.Lock()
	defer z.mu.Unlock()

	obj, ok := z.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	obj.lastRead = z.now()
	return append([]byte(nil), obj.data...), nil
}

// List returns the direct children of dir: directories first, then objects,
// each group ordered by name. The empty path lists the zone root.
func (z *Zone) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := Clean(dir)

	z.mu.RLock()
	defer z.mu.RUnlock()

	if key != "" {
		if _, ok := z.dirs[key]; !ok {
			return nil, ErrNotFound
		}
	}

	dirs := make([]Entry, 0)
	files := make([]Entry, 0)
	for p, d := range z.dirs {
		if parentOf(p) == key {
			dirs = append(dirs, z.dirEntry(p, d))
		}
	}
	for p, obj := range z.objects {
		if parentOf(p) == key {
			files = append(files, z.objectEntry(p, obj))
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].ObjectName < dirs[j].ObjectName })
	sort.Slice(files, func(i, j int) bool { return files[i].ObjectName < files[j].ObjectName })
	return append(dirs, files...), nil
}

// Delete removes the object at path, or the directory at path together with
// everything below it. The parent directory is kept even when it becomes
// empty.
func (z *Zone) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := Clean(path)
	if key == "" {
		return fmt.Errorf("%w: refusing to delete the zone root", ErrInvalidPath)
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	if _, ok := z.objects[key]; ok {
		delete(z.objects, key)
		z.touchParent(key)
		return nil
	}
	if _, ok := z.dirs[key]; !ok {
		return ErrNotFound
	}

	prefix := key + "/"
	for p := range z.objects {
		if strings.HasPrefix(p, prefix) {
			delete(z.objects, p)
		}
	}
	for p := range z.dirs {
		if p == key || strings.HasPrefix(p, prefix) {
			delete(z.dirs, p)
		}
	}
	z.touchParent(key)
	return nil
}

func (z *Zone) touchParent(key string) {
	if d, ok := z.dirs[parentOf(key)]; ok {
		d.changed = z.now()
	}
}

func (z *Zone) objectEntry(key string, obj *object) Entry {
	return Entry{
		GUID:            obj.guid,
		StorageZoneName: z.name,
		Path:            z.entryPath(parentOf(key)),
		ObjectName:      baseOf(key),
		Length:          int64(len(obj.data)),
		LastChanged:     obj.changed,
		ServerID:        z.serverID,
		ContentType:     obj.contentType,
		DateCreated:     obj.created,
		LastRead:        obj.lastRead,
		Checksum:        obj.checksum,
	}
}

func (z *Zone) dirEntry(key string, d *directory) Entry {
	return Entry{
		GUID:            d.guid,
		StorageZoneName: z.name,
		Path:            z.entryPath(parentOf(key)),
		ObjectName:      baseOf(key),
		LastChanged:     d.changed,
		IsDirectory:     true,
		ServerID:        z.serverID,
		DateCreated:     d.created,
	}
}

// entryPath renders the Path field the API reports: "/{zone}/{dir}/".
func (z *Zone) entryPath(dir string) string {
	if dir == "" {
		return "/" + z.name + "/"
	}
	return "/" + z.name + "/" + dir + "/"
}

// Clean strips leading, trailing and repeated slashes.
func Clean(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	return strings.Join(parts, "/")
}

func parentOf(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[:idx]
	}
	return ""
}

func baseOf(key string) string {
	return key[strings.LastIndex(key, "/")+1:]
}

// ancestors returns every parent directory of key, outermost first.
func ancestors(key string) []string {
	var out []string
	for i, r := range key {
		if r == '/' {
			out = append(out, key[:i])
		}
	}
	return out
}
