// Package store holds keyed record collections that live in memory and are
// persisted as one blob per collection through a pluggable Backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidRecord is returned when a record fails the collection's validator.
var ErrInvalidRecord = errors.New("invalid record")

// Options configures a Collection.
type Options struct {
	Logger *zap.Logger
	Now    func() time.Time
}

// Snapshot is a point-in-time copy of a collection.
type Snapshot[T any] struct {
	Data         map[string]T
	Order        []string // ids in insertion order
	LastModified time.Time
}

// Item pairs a record with its id and insertion sequence.
type Item[T any] struct {
	ID    string
	Seq   uint64
	Value T
}

type entry[T any] struct {
	seq    uint64
	record T
}

// Collection is an in-memory map of id to record, persisted as a whole through
// a Backend after every mutation. All mutations go through one Serializer;
// reads are served directly from memory and may observe a state that a queued
// mutation is about to replace.
//
// T must be a plain value type (no pointers, maps or slices shared with callers)
// so that handing out copies is enough to isolate callers from the store.
type Collection[T any] struct {
	name     string
	backend  Backend
	validate func(T) error
	logger   *zap.Logger
	now      func() time.Time

	serializer Serializer

	mu           sync.RWMutex
	items        map[string]entry[T]
	nextSeq      uint64
	lastModified time.Time
}

// Open hydrates the named collection from backend. A missing or unreadable blob
// yields an empty collection and a warning; Open itself never fails.
// validate may be nil.
func Open[T any](ctx context.Context, backend Backend, name string, validate func(T) error, opts Options) *Collection[T] {
	c := &Collection[T]{
		name:     name,
		backend:  backend,
		validate: validate,
		logger:   opts.Logger,
		now:      opts.Now,
		items:    make(map[string]entry[T]),
		nextSeq:  1,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.logger = c.logger.With(zap.String("collection", name))

	c.hydrate(ctx)
	return c
}

// Load returns a copy of the whole collection.
func (c *Collection[T]) Load() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot[T]{
		Data:         make(map[string]T, len(c.items)),
		LastModified: c.lastModified,
	}
	for _, it := range c.orderedLocked(nil) {
		snap.Data[it.ID] = it.Value
		snap.Order = append(snap.Order, it.ID)
	}
	return snap
}

// FindByID returns the record stored under id.
func (c *Collection[T]) FindByID(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[id]
	return e.record, ok
}

// FindMany returns every record matching pred, in insertion order.
// A nil pred matches everything.
func (c *Collection[T]) FindMany(pred func(T) bool) []T {
	items := c.Items(pred)
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, it.Value)
	}
	return out
}

// Items is FindMany with ids and insertion sequence attached.
func (c *Collection[T]) Items(pred func(T) bool) []Item[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orderedLocked(pred)
}

// Count returns the number of records matching pred.
func (c *Collection[T]) Count(pred func(T) bool) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if pred == nil {
		return len(c.items)
	}
	n := 0
	for _, e := range c.items {
		if pred(e.record) {
			n++
		}
	}
	return n
}

// Upsert inserts item under id, or overwrites the existing record in place.
func (c *Collection[T]) Upsert(ctx context.Context, id string, item T) error {
	return c.Mutate(ctx, func(tx *Tx[T]) error {
		return tx.Put(id, item)
	})
}

// Update applies patch to a copy of the record under id and stores the result.
// It reports false when id is absent.
func (c *Collection[T]) Update(ctx context.Context, id string, patch func(*T)) (T, bool, error) {
	var (
		updated T
		found   bool
	)
	err := c.Mutate(ctx, func(tx *Tx[T]) error {
		current, ok := tx.Get(id)
		if !ok {
			return nil
		}
		patch(&current)
		if err := tx.Put(id, current); err != nil {
			return err
		}
		updated, found = current, true
		return nil
	})
	return updated, found, err
}

// Delete removes the record under id and reports whether it existed.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := c.Mutate(ctx, func(tx *Tx[T]) error {
		removed = tx.Delete(id)
		return nil
	})
	return removed, err
}

// Clear removes every record.
func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.Mutate(ctx, func(tx *Tx[T]) error {
		tx.Clear()
		return nil
	})
}

// Mutate runs fn with exclusive write access to the collection. Mutations made
// through tx are visible immediately and are persisted once after fn returns,
// even when fn returns an error.
func (c *Collection[T]) Mutate(ctx context.Context, fn func(tx *Tx[T]) error) error {
	return c.serializer.Do(ctx, func(ctx context.Context) error {
		tx := &Tx[T]{c: c}
		err := fn(tx)
		if tx.dirty {
			c.mu.Lock()
			c.lastModified = c.now()
			c.mu.Unlock()
			c.persist(ctx)
		}
		return err
	})
}

// Flush writes the current state to the backend after every queued mutation.
func (c *Collection[T]) Flush(ctx context.Context) error {
	return c.serializer.Do(ctx, func(ctx context.Context) error {
		c.persist(ctx)
		return nil
	})
}

func (c *Collection[T]) orderedLocked(pred func(T) bool) []Item[T] {
	out := make([]Item[T], 0, len(c.items))
	for id, e := range c.items {
		if pred != nil && !pred(e.record) {
			continue
		}
		out = append(out, Item[T]{ID: id, Seq: e.seq, Value: e.record})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

type storedRecord[T any] struct {
	Seq    uint64 `json:"seq"`
	Record T      `json:"record"`
}

type document[T any] struct {
	LastModified int64                      `json:"lastModified"`
	NextSeq      uint64                     `json:"nextSeq"`
	Records      map[string]storedRecord[T] `json:"records"`
}

type rawDocument struct {
	LastModified int64                      `json:"lastModified"`
	NextSeq      uint64                     `json:"nextSeq"`
	Records      map[string]json.RawMessage `json:"records"`
}

func (c *Collection[T]) hydrate(ctx context.Context) {
	data, err := c.backend.Read(ctx, c.name)
	if err != nil {
		c.logger.Warn("reading collection failed, starting empty", zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}

	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.Warn("collection blob is corrupt, starting empty", zap.Error(err))
		return
	}

	for id, raw := range doc.Records {
		var rec storedRecord[T]
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger.Warn("skipping malformed record", zap.String("id", id), zap.Error(err))
			continue
		}
		if c.validate != nil {
			if err := c.validate(rec.Record); err != nil {
				c.logger.Warn("skipping invalid record", zap.String("id", id), zap.Error(err))
				continue
			}
		}
		c.items[id] = entry[T]{seq: rec.Seq, record: rec.Record}
		if rec.Seq >= c.nextSeq {
			c.nextSeq = rec.Seq + 1
		}
	}
	if doc.NextSeq > c.nextSeq {
		c.nextSeq = doc.NextSeq
	}
	if doc.LastModified > 0 {
		c.lastModified = time.UnixMilli(doc.LastModified)
	}
}

func (c *Collection[T]) encode() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc := document[T]{
		NextSeq: c.nextSeq,
		Records: make(map[string]storedRecord[T], len(c.items)),
	}
	if !c.lastModified.IsZero() {
		doc.LastModified = c.lastModified.UnixMilli()
	}
	for id, e := range c.items {
		doc.Records[id] = storedRecord[T]{Seq: e.seq, Record: e.record}
	}
	return json.Marshal(doc)
}

// persist writes the collection to the backend. Failures are logged and
// swallowed: the in-memory state stays authoritative for this process.
func (c *Collection[T]) persist(ctx context.Context) {
	data, err := c.encode()
	if err != nil {
		c.logger.Error("encoding collection failed", zap.Error(err))
		return
	}
	if err := c.backend.Write(ctx, c.name, data); err != nil {
		c.logger.Error("persisting collection failed", zap.Error(err))
	}
}

// Tx gives a Mutate callback direct access to the live collection.
type Tx[T any] struct {
	c     *Collection[T]
	dirty bool
}

// Get returns the record stored under id.
func (tx *Tx[T]) Get(id string) (T, bool) {
	return tx.c.FindByID(id)
}

// Items returns the records matching pred in insertion order.
func (tx *Tx[T]) Items(pred func(T) bool) []Item[T] {
	return tx.c.Items(pred)
}

// Put inserts or overwrites the record under id. An overwritten record keeps
// its insertion sequence.
func (tx *Tx[T]) Put(id string, item T) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if tx.c.validate != nil {
		if err := tx.c.validate(item); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}

	c := tx.c
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[id]
	if !ok {
		e.seq = c.nextSeq
		c.nextSeq++
	}
	e.record = item
	c.items[id] = e
	tx.dirty = true
	return nil
}

// Delete removes the record under id and reports whether it existed.
func (tx *Tx[T]) Delete(id string) bool {
	c := tx.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	tx.dirty = true
	return true
}

// Clear removes every record.
func (tx *Tx[T]) Clear() {
	c := tx.c
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]entry[T])
	tx.dirty = true
}
