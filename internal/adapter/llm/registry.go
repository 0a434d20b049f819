package llm

import (
	"fmt"
	"log/slog"
	"sync"

	"finnguide/internal/domain"
)

// Registry holds the configured chat deployments by name, in the order
// they were configured, and builds the provider chain the agent talks to.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
	order     []string
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry. logger is handed to the
// failover provider built by Resolve.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
		logger:    logger,
	}
}

// Register adds a provider under its Name. Returns error if the name is
// already taken.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = provider
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// Resolve returns the provider named primary, or, when fallbacks are
// given, a FailoverProvider that tries primary and then each fallback in
// order. A fallback naming the primary again is rejected.
func (r *Registry) Resolve(primary string, fallbacks []string) (domain.LLMProvider, error) {
	p, err := r.Get(primary)
	if err != nil {
		return nil, fmt.Errorf("default llm provider: %w", err)
	}
	if len(fallbacks) == 0 {
		return p, nil
	}

	chain := make([]domain.LLMProvider, 0, len(fallbacks))
	for _, name := range fallbacks {
		if name == primary {
			return nil, fmt.Errorf("failover provider %s: %w", name,
				domain.NewDomainError("Registry.Resolve", domain.ErrInvalidInput, "fallback repeats the default provider"))
		}
		fb, err := r.Get(name)
		if err != nil {
			return nil, fmt.Errorf("failover provider %s: %w", name, err)
		}
		chain = append(chain, fb)
	}
	return NewFailoverProvider(p, chain, r.logger), nil
}

// List returns all registered provider names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}
