//go:build integration

package index

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase("part_extractor_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/part_extractor_test?sslmode=disable", host, port.Port())

	store, err := OpenStore(ctx, "postgres", "", dsn)
	require.NoError(t, err)

	ix := newTestIndex(t, store)
	defer ix.Close()

	h, err := ix.Build(ctx, samplePassages())
	require.NoError(t, err)

	got, err := ix.Retrieve(ctx, h, "operating temperature", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Page)
	assert.Equal(t, "ds.pdf", got[0].SourceDocument)

	all, err := ix.Retrieve(ctx, h, "number of rows", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	st, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Passages)

	require.NoError(t, ix.Delete(ctx, h))
	_, err = ix.Retrieve(ctx, h, "x", 1)
	assert.True(t, IsUnknownHandle(err))
}
