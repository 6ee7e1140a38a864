package mapper

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryIndex is an in-process EntityIndex for front-ends that run
// without a host library. Safe for concurrent use.
type MemoryIndex struct {
	mu        sync.RWMutex
	companies map[string]uuid.UUID
	series    map[string]uuid.UUID
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		companies: make(map[string]uuid.UUID),
		series:    make(map[string]uuid.UUID),
	}
}

func (x *MemoryIndex) AddCompany(name string) uuid.UUID {
	x.mu.Lock()
	defer x.mu.Unlock()

	key := strings.ToLower(name)
	if id, ok := x.companies[key]; ok {
		return id
	}
	id := uuid.New()
	x.companies[key] = id
	return id
}

func (x *MemoryIndex) AddSeries(name string) uuid.UUID {
	x.mu.Lock()
	defer x.mu.Unlock()

	key := strings.ToLower(name)
	if id, ok := x.series[key]; ok {
		return id
	}
	id := uuid.New()
	x.series[key] = id
	return id
}

func (x *MemoryIndex) CompanyByName(name string) (uuid.UUID, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	id, ok := x.companies[strings.ToLower(name)]
	return id, ok
}

func (x *MemoryIndex) SeriesByName(name string) (uuid.UUID, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	id, ok := x.series[strings.ToLower(name)]
	return id, ok
}
