package objectclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/pendocareer/ragpipeline/internal/core"
)

// MemoryObjectClient keeps objects in process memory. It backs tests and
// local runs without S3 credentials.
type MemoryObjectClient struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryObjectClient() *MemoryObjectClient {
	return &MemoryObjectClient{objects: make(map[string][]byte)}
}

var _ core.ObjectClient = (*MemoryObjectClient)(nil)

func (c *MemoryObjectClient) UploadFile(_ context.Context, key string, data []byte, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.objects[key] = cp
	return "memory://" + key, nil
}

func (c *MemoryObjectClient) GetFile(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (c *MemoryObjectClient) DeleteFile(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, key)
	return nil
}
