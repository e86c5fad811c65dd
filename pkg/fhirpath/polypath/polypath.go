// Package polypath resolves FHIRPath member-navigation names against
// FHIR resources, including polymorphic (value[x]) elements, and caches
// the resolution since the same (objectType, name) pair recurs heavily
// when an expression runs over a bundle of similarly-shaped resources.
package polypath

import (
	"container/list"
	"context"
	"sync"

	"github.com/gofhirpath/fhirpath/pkg/fhirpath/model"
)

// Source is implemented by the value type the resolver navigates —
// satisfied by *types.ObjectValue without polypath importing the types
// package, avoiding an import cycle (types is imported by eval, which
// will import polypath).
type Source interface {
	Type() string
	FieldNames() []string
	HasField(name string) bool
}

// Resolution describes how a member name resolved against one object:
// either a direct field, the object's own resourceType/base-type match,
// or a concrete choice-type variant field name.
type Resolution struct {
	// DirectField is set when name is an ordinary field on the object.
	DirectField bool
	// SelfMatch is set when name names the object's own resource type
	// (or one of its FHIR base types, Resource/DomainResource).
	SelfMatch bool
	// ChoiceField, when non-empty, is the concrete field name a
	// polymorphic base name resolved to (e.g. "value" -> "valueQuantity").
	ChoiceField string
}

// Resolver resolves member names against FHIR objects, backed by a
// ModelProvider for type-hierarchy and choice-type knowledge, and an LRU
// cache keyed on (object type, requested name).
type Resolver struct {
	provider model.ModelProvider

	mu      sync.RWMutex
	cache   map[cacheKey]*list.Element
	lruList *list.List
	limit   int
}

type cacheKey struct {
	objectType string
	name       string
}

type cacheEntry struct {
	key    cacheKey
	result Resolution
	found  bool
}

// NewResolver builds a Resolver over provider with an LRU cache bounded
// to limit entries (0 means unbounded).
func NewResolver(provider model.ModelProvider, limit int) *Resolver {
	return &Resolver{
		provider: provider,
		cache:    make(map[cacheKey]*list.Element),
		lruList:  list.New(),
		limit:    limit,
	}
}

// Resolve determines how name should navigate from obj: a direct field
// read, a self-type match (resourceType/Resource/DomainResource), or a
// polymorphic choice-field resolution. found is false if name does not
// resolve at all.
func (r *Resolver) Resolve(ctx context.Context, obj Source, name string) (Resolution, bool) {
	key := cacheKey{objectType: obj.Type(), name: name}

	if res, ok := r.lookup(key); ok {
		return res, res.found()
	}

	res, ok := r.compute(ctx, obj, name)
	r.store(key, res, ok)
	return res, ok
}

func (res Resolution) found() bool {
	return res.DirectField || res.SelfMatch || res.ChoiceField != ""
}

func (r *Resolver) compute(ctx context.Context, obj Source, name string) (Resolution, bool) {
	if r.provider.IsSubtypeOf(ctx, obj.Type(), name) {
		return Resolution{SelfMatch: true}, true
	}
	if obj.HasField(name) {
		return Resolution{DirectField: true}, true
	}
	if !r.provider.IsChoiceProperty(ctx, name) {
		return Resolution{}, false
	}
	for _, variant := range r.provider.ChoiceVariants(ctx, name) {
		if obj.HasField(variant) {
			return Resolution{ChoiceField: variant}, true
		}
	}
	return Resolution{}, false
}

func (r *Resolver) lookup(key cacheKey) (Resolution, bool) {
	r.mu.RLock()
	elem, ok := r.cache[key]
	r.mu.RUnlock()
	if !ok {
		return Resolution{}, false
	}

	r.mu.Lock()
	r.lruList.MoveToFront(elem)
	r.mu.Unlock()

	entry := elem.Value.(*cacheEntry)
	return entry.result, entry.found
}

func (r *Resolver) store(key cacheKey, res Resolution, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.cache[key]; ok {
		r.lruList.MoveToFront(elem)
		elem.Value.(*cacheEntry).result = res
		return
	}

	if r.limit > 0 && len(r.cache) >= r.limit {
		oldest := r.lruList.Back()
		if oldest != nil {
			r.lruList.Remove(oldest)
			delete(r.cache, oldest.Value.(*cacheEntry).key)
		}
	}

	entry := &cacheEntry{key: key, result: res, found: found}
	elem := r.lruList.PushFront(entry)
	r.cache[key] = elem
}
