package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "insights:all", &dest)
	assert.True(t, appErrors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "insights:all", map[string]int{"pending": 1}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "insights:all"))
}

func TestNamespacedKey(t *testing.T) {
	assert.Equal(t, "complaint-api:insights:all", namespaced("insights:all"))
}
