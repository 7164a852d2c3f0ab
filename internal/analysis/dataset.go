package analysis

import (
	"context"
	"sync"

	"github.com/statflow/statflow/pkg/schema"
)

// Dataset is a tabular dataset the analyzers operate on. Rows are maps keyed
// by column name; numeric cells are float64.
type Dataset struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Column extracts the numeric values of a named column, skipping cells that
// are missing or non-numeric.
func (d *Dataset) Column(name string) []float64 {
	vals := make([]float64, 0, len(d.Rows))
	for _, row := range d.Rows {
		v, ok := row[name]
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			vals = append(vals, f)
		}
	}
	return vals
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

// Provider resolves datasets by ID at execution time.
type Provider interface {
	Get(ctx context.Context, id string) (*Dataset, error)
}

// InMemoryProvider is a Provider backed by a map. Safe for concurrent use.
type InMemoryProvider struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewInMemoryProvider creates an empty in-memory dataset provider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{datasets: make(map[string]*Dataset)}
}

// Put registers or replaces a dataset.
func (p *InMemoryProvider) Put(d *Dataset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.datasets[d.ID] = d
}

// Get returns the dataset with the given ID.
func (p *InMemoryProvider) Get(ctx context.Context, id string) (*Dataset, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.datasets[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "dataset %q not found", id)
	}
	return d, nil
}

var _ Provider = (*InMemoryProvider)(nil)
