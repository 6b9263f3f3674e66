package processor

import (
	"fmt"
	"sort"
)

// DefaultStrategyCode is used for loans that do not name a strategy.
const DefaultStrategyCode = "mifos-standard"

// Registry resolves a loan's configured strategy code to an allocation
// strategy. One registry is built at startup and injected wherever loans are
// processed; strategies are stateless so the registry is safe for concurrent
// reads.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry with all stock strategies registered.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register(NewStandardStrategy())
	r.Register(NewHeavensFamilyStrategy())
	r.Register(NewCreocoreStrategy())
	r.Register(NewRBIIndiaStrategy())
	return r
}

func (r *Registry) Register(s Strategy) {
	r.strategies[s.Code()] = s
}

// Lookup returns the strategy registered under code, falling back to the
// default when code is empty.
func (r *Registry) Lookup(code string) (Strategy, error) {
	if code == "" {
		code = DefaultStrategyCode
	}
	s, ok := r.strategies[code]
	if !ok {
		return nil, fmt.Errorf("unknown transaction processing strategy %q", code)
	}
	return s, nil
}

// ProcessorFor builds a driver bound to the strategy registered under code.
func (r *Registry) ProcessorFor(code string) (*Processor, error) {
	s, err := r.Lookup(code)
	if err != nil {
		return nil, err
	}
	return New(s), nil
}

// Codes lists the registered strategy codes in stable order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.strategies))
	for code := range r.strategies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
