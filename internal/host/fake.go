package host

import "sync"

// FakePage is an in-memory Page for tests and local development. It
// intentionally favors clarity over performance.
type FakePage struct {
	mu           sync.Mutex
	elements     map[string]bool
	storage      map[string]string
	materialized []Resource
}

func NewFakePage() *FakePage {
	return &FakePage{
		elements: make(map[string]bool),
		storage:  make(map[string]string),
	}
}

// AddElement makes a selector visible to ElementExists.
func (p *FakePage) AddElement(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = true
}

// SetStorage seeds a storage key, simulating a tracker having written state.
func (p *FakePage) SetStorage(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.storage[key] = value
}

func (p *FakePage) ElementExists(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[selector]
}

func (p *FakePage) Materialize(res Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.materialized = append(p.materialized, res.Clone())
	return nil
}

func (p *FakePage) RemoveStorageKeys(keys []string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for _, k := range keys {
		if _, ok := p.storage[k]; ok {
			delete(p.storage, k)
			removed++
		}
	}
	return removed
}

// Materialized returns the resources made live, in order.
func (p *FakePage) Materialized() []Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Resource, len(p.materialized))
	copy(out, p.materialized)
	return out
}

// StorageKeys returns the keys currently present, for assertions.
func (p *FakePage) StorageKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.storage))
	for k := range p.storage {
		keys = append(keys, k)
	}
	return keys
}
