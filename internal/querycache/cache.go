// Package querycache is the explicit, per-process query cache used by the
// list view and invalidated by mutations. Values are stored as JSON in
// freecache; concurrent misses for one key share a single upstream call.
package querycache

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"golang.org/x/sync/singleflight"

	"github.com/kuitang/notehub-client/internal/obs"
)

// NamespaceNotes holds every cached note list page.
const NamespaceNotes = "notes"

// MinSizeBytes is the smallest cache freecache accepts.
const MinSizeBytes = 512 * 1024

// Recorder receives cache events. *metrics.Manager implements it.
type Recorder interface {
	CacheLookup(namespace string, hit bool)
	CacheInvalidated(namespace string)
}

// Options configures a Cache.
type Options struct {
	SizeBytes int
	TTL       time.Duration // zero keeps entries until evicted
	Recorder  Recorder
}

// Key identifies a cached query: a namespace plus ordered key parts.
type Key struct {
	Namespace string
	Parts     []string
}

// NewKey builds a Key.
func NewKey(namespace string, parts ...string) Key {
	return Key{Namespace: namespace, Parts: parts}
}

// ListKey is the key for one page of the note list.
func ListKey(page, perPage int, search string) Key {
	return NewKey(NamespaceNotes, strconv.Itoa(page), strconv.Itoa(perPage), search)
}

func (k Key) String() string {
	return k.Namespace + "/" + strings.Join(k.Parts, "/")
}

// Cache is safe for concurrent use.
type Cache struct {
	store    *freecache.Cache
	ttlSecs  int
	recorder Recorder
	group    singleflight.Group

	mu     sync.Mutex
	epochs map[string]uint64
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Entries int64
	Hits    int64
	Misses  int64
}

// New creates a cache.
func New(opts Options) *Cache {
	size := opts.SizeBytes
	if size < MinSizeBytes {
		size = MinSizeBytes
	}
	ttl := 0
	if opts.TTL > 0 {
		ttl = int(opts.TTL.Round(time.Second) / time.Second)
		if ttl == 0 {
			ttl = 1
		}
	}
	return &Cache{
		store:    freecache.NewCache(size),
		ttlSecs:  ttl,
		recorder: opts.Recorder,
		epochs:   make(map[string]uint64),
	}
}

// storageKey folds the namespace epoch into the key so that bumping the
// epoch orphans every entry in the namespace at once.
func (c *Cache) storageKey(k Key) string {
	c.mu.Lock()
	epoch := c.epochs[k.Namespace]
	c.mu.Unlock()

	var b strings.Builder
	b.WriteString(k.Namespace)
	b.WriteByte(0)
	b.WriteString(strconv.FormatUint(epoch, 10))
	for _, p := range k.Parts {
		b.WriteByte(0)
		b.WriteString(p)
	}
	return b.String()
}

// InvalidateNamespace marks every entry in namespace stale, whatever its key
// parts. In-flight fetches that finish afterwards store under the old epoch
// and are never read.
func (c *Cache) InvalidateNamespace(namespace string) {
	c.mu.Lock()
	c.epochs[namespace]++
	epoch := c.epochs[namespace]
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.CacheInvalidated(namespace)
	}
	obs.Pkg("querycache").Debug("cache_invalidated", "namespace", namespace, "epoch", epoch)
}

// Stats returns freecache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries: c.store.EntryCount(),
		Hits:    c.store.HitCount(),
		Misses:  c.store.MissCount(),
	}
}

func (c *Cache) get(sk string) ([]byte, bool) {
	b, err := c.store.Get([]byte(sk))
	if err != nil {
		return nil, false
	}
	return b, true
}

func (c *Cache) set(ctx context.Context, k Key, sk string, b []byte) {
	if err := c.store.Set([]byte(sk), b, c.ttlSecs); err != nil {
		obs.From(ctx).With("pkg", "querycache").Warn("cache_set_failed", "key", k.String(), "bytes", len(b), "error", err)
	}
}

// Peek returns the cached value for key without fetching.
func Peek[T any](c *Cache, key Key) (T, bool) {
	var zero T
	b, ok := c.get(c.storageKey(key))
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, false
	}
	return v, true
}

// Fetch returns the cached value for key, or calls fn once for all
// concurrent callers and caches a successful result. Errors are never
// cached. fromCache reports whether the value came from the cache.
//
// The shared call runs detached from any single caller's cancellation; a
// caller whose ctx ends stops waiting but the call still completes and
// fills the cache.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (value T, fromCache bool, err error) {
	var zero T
	sk := c.storageKey(key)

	if b, ok := c.get(sk); ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			c.record(key.Namespace, true)
			return v, true, nil
		}
	}
	c.record(key.Namespace, false)

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(sk, func() (any, error) {
		v, err := fn(flightCtx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err == nil {
			c.set(flightCtx, key, sk, b)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

func (c *Cache) record(namespace string, hit bool) {
	if c.recorder != nil {
		c.recorder.CacheLookup(namespace, hit)
	}
}
