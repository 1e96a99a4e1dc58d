package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// CachingSecretProvider wraps a SecretProvider and resolves each
// (tenant, tool) secret at most once per process, holding it only in
// memory for the lifetime of the process (spec.md §4.4 "held only in
// memory; they never appear in status events, logs, or outputs").
type CachingSecretProvider struct {
	inner SecretProvider

	mu     sync.Mutex
	cached map[string]string
}

// NewCachingSecretProvider wraps inner with a first-use cache.
func NewCachingSecretProvider(inner SecretProvider) *CachingSecretProvider {
	return &CachingSecretProvider{inner: inner, cached: make(map[string]string)}
}

func (c *CachingSecretProvider) Secret(ctx context.Context, tenantID string, toolName model.ToolName) (string, error) {
	key := fmt.Sprintf("%s/%s", tenantID, toolName)

	c.mu.Lock()
	if v, ok := c.cached[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	secret, err := c.inner.Secret(ctx, tenantID, toolName)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cached[key] = secret
	c.mu.Unlock()

	return secret, nil
}
