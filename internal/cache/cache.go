// Package cache implements the response cache for expensive model calls.
// It offers two admission modes: single-value (classic get-or-call with
// global LRU eviction) and diversity (a bounded set of variants per key,
// served at random once full). The in-memory index is authoritative; an
// optional SQLite backend makes entries survive restarts and is allowed
// to fail without ever failing a request.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config holds cache tuning knobs.
type Config struct {
	// Capacity is the maximum total entry count before LRU eviction.
	Capacity int

	// MaxVariants is the default variant bound for diversity mode.
	MaxVariants int

	// Path is the SQLite file for durable entries. Empty disables
	// persistence.
	Path string

	// Seed seeds the variant-selection RNG. Zero means time-seeded.
	// Tests inject a fixed seed to make random selection deterministic.
	Seed int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:    2048,
		MaxVariants: 5,
	}
}

// =============================================================================
// KEY CANONICALIZATION
// =============================================================================

// normalizeText lowercases and collapses interior whitespace so that
// trivially different phrasings of the same prompt share a key.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Key computes the canonical key hash for a call id and its key parts.
// Map order never affects the result: parts are flattened in sorted key
// order and every value is whitespace/case normalized.
func Key(callID string, keyParts map[string]string) string {
	names := make([]string, 0, len(keyParts))
	for name := range keyParts {
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	h.Write([]byte(normalizeText(callID)))
	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(normalizeText(keyParts[name])))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// =============================================================================
// RESPONSE CACHE
// =============================================================================

// Entry is one cached value. (call_id, key_hash, variant) is unique;
// single-value mode always uses variant 0.
type Entry struct {
	CallID     string
	KeyHash    string
	Variant    int
	Value      string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Stats reports cache counters.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// ResponseCache is the process-wide cache shared across conversations.
// Every lookup, insert, touch and eviction runs under one mutex so
// check-then-act sequences are atomic; concurrent misses for the same key
// are additionally collapsed through singleflight so the external call
// runs once.
type ResponseCache struct {
	mu       sync.Mutex
	byEntry  map[string]*list.Element // callID|hash|variant -> element
	byKey    map[string][]*list.Element
	lru      *list.List // front = most recently used
	capacity int
	rng      *rand.Rand
	group    singleflight.Group
	backend  *sqliteBackend
	logger   *zap.Logger

	hits      int64
	misses    int64
	evictions int64
}

// New creates a response cache. When cfg.Path is set, previously persisted
// entries are loaded; a broken backend degrades to memory-only operation.
func New(cfg Config, logger *zap.Logger) *ResponseCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c := &ResponseCache{
		byEntry:  make(map[string]*list.Element),
		byKey:    make(map[string][]*list.Element),
		lru:      list.New(),
		capacity: cfg.Capacity,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger,
	}

	if cfg.Path != "" {
		backend, err := newSQLiteBackend(cfg.Path)
		if err != nil {
			logger.Warn("cache backend unavailable, running memory-only",
				zap.String("path", cfg.Path), zap.Error(err))
		} else {
			c.backend = backend
			c.warm()
		}
	}

	return c
}

// warm loads persisted entries oldest-first so the most recently used ones
// end up at the front of the LRU list.
func (c *ResponseCache) warm() {
	entries, err := c.backend.loadAll(c.capacity)
	if err != nil {
		c.logger.Warn("cache warm load failed", zap.Error(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range entries {
		c.insertLocked(&entries[i], false)
	}
	c.logger.Info("cache warmed", zap.Int("entries", len(entries)))
}

func entryID(callID, keyHash string, variant int) string {
	return fmt.Sprintf("%s|%s|%d", callID, keyHash, variant)
}

func keyID(callID, keyHash string) string {
	return callID + "|" + keyHash
}

// GetOrCall returns the cached value for (callID, keyParts), invoking fn
// exactly once per miss. On hit, fn is never invoked and last_used_at is
// refreshed. A failing fn is never stored; its error propagates unmodified.
func (c *ResponseCache) GetOrCall(ctx context.Context, callID string, keyParts map[string]string, fn func(context.Context) (string, error)) (string, error) {
	hash := Key(callID, keyParts)

	if value, ok := c.lookup(callID, hash); ok {
		return value, nil
	}

	// Collapse concurrent misses for the same key: one caller invokes fn,
	// the rest observe its result.
	v, err, _ := c.group.Do(keyID(callID, hash), func() (interface{}, error) {
		if value, ok := c.lookup(callID, hash); ok {
			return value, nil
		}
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.store(callID, hash, 0, value)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetOrCallDiversity returns a value for an open-ended call. While fewer
// than maxVariants values are stored for the key, fn is invoked and its
// result stored as a new variant. Once the bound is reached, fn is never
// invoked; an existing variant is chosen uniformly at random instead.
func (c *ResponseCache) GetOrCallDiversity(ctx context.Context, callID string, keyParts map[string]string, fn func(context.Context) (string, error), maxVariants int) (string, error) {
	if maxVariants <= 0 {
		maxVariants = DefaultConfig().MaxVariants
	}
	hash := Key(callID, keyParts)

	c.mu.Lock()
	variants := c.byKey[keyID(callID, hash)]
	if len(variants) >= maxVariants {
		el := variants[c.rng.Intn(len(variants))]
		entry := el.Value.(*Entry)
		c.touchLocked(el)
		value := entry.Value
		c.hits++
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	value, err := fn(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	variants = c.byKey[keyID(callID, hash)]
	if len(variants) >= maxVariants {
		// Raced with another caller that filled the set: serve the fresh
		// value without storing so the bound holds.
		return value, nil
	}
	now := time.Now().UTC()
	entry := &Entry{
		CallID:     callID,
		KeyHash:    hash,
		Variant:    nextVariant(variants),
		Value:      value,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	c.insertLocked(entry, true)
	return value, nil
}

// nextVariant returns one past the highest stored variant index, so
// indices stay unique even after evictions removed earlier variants.
func nextVariant(variants []*list.Element) int {
	next := 0
	for _, el := range variants {
		if v := el.Value.(*Entry).Variant; v >= next {
			next = v + 1
		}
	}
	return next
}

// lookup returns the variant-0 value for a key, refreshing recency.
func (c *ResponseCache) lookup(callID, hash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.byEntry[entryID(callID, hash, 0)]
	if !ok {
		return "", false
	}
	c.touchLocked(el)
	c.hits++
	return el.Value.(*Entry).Value, true
}

// store records a fresh single-value entry and evicts if over capacity.
func (c *ResponseCache) store(callID, hash string, variant int, value string) {
	now := time.Now().UTC()
	entry := &Entry{
		CallID:     callID,
		KeyHash:    hash,
		Variant:    variant,
		Value:      value,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if _, exists := c.byEntry[entryID(callID, hash, variant)]; exists {
		return
	}
	c.insertLocked(entry, true)
}

// insertLocked adds an entry to the index and evicts the globally
// least-recently-used entry while over capacity. Caller holds c.mu.
func (c *ResponseCache) insertLocked(entry *Entry, persist bool) {
	id := entryID(entry.CallID, entry.KeyHash, entry.Variant)
	el := c.lru.PushFront(entry)
	c.byEntry[id] = el
	kid := keyID(entry.CallID, entry.KeyHash)
	c.byKey[kid] = append(c.byKey[kid], el)

	if persist && c.backend != nil {
		if err := c.backend.put(entry); err != nil {
			c.logger.Warn("cache persist failed", zap.String("call_id", entry.CallID), zap.Error(err))
		}
	}

	for c.lru.Len() > c.capacity {
		c.evictLocked()
	}
}

// evictLocked removes the entry with the oldest last_used_at.
func (c *ResponseCache) evictLocked() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*Entry)
	c.lru.Remove(back)
	delete(c.byEntry, entryID(entry.CallID, entry.KeyHash, entry.Variant))

	kid := keyID(entry.CallID, entry.KeyHash)
	variants := c.byKey[kid]
	for i, el := range variants {
		if el == back {
			c.byKey[kid] = append(variants[:i], variants[i+1:]...)
			break
		}
	}
	if len(c.byKey[kid]) == 0 {
		delete(c.byKey, kid)
	}
	c.evictions++

	if c.backend != nil {
		if err := c.backend.delete(entry.CallID, entry.KeyHash, entry.Variant); err != nil {
			c.logger.Warn("cache backend delete failed", zap.Error(err))
		}
	}
}

// touchLocked refreshes recency for an entry. Caller holds c.mu.
func (c *ResponseCache) touchLocked(el *list.Element) {
	entry := el.Value.(*Entry)
	entry.LastUsedAt = time.Now().UTC()
	c.lru.MoveToFront(el)
	if c.backend != nil {
		if err := c.backend.touch(entry.CallID, entry.KeyHash, entry.Variant, entry.LastUsedAt); err != nil {
			c.logger.Warn("cache backend touch failed", zap.Error(err))
		}
	}
}

// Len returns the current entry count.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// VariantCount returns how many variants are stored for a key.
func (c *ResponseCache) VariantCount(callID string, keyParts map[string]string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey[keyID(callID, Key(callID, keyParts))])
}

// Stats returns a snapshot of cache counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   c.lru.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Close releases the durable backend, if any.
func (c *ResponseCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return nil
	}
	err := c.backend.close()
	c.backend = nil
	return err
}
