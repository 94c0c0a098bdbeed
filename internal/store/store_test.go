package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/natijti/internal/config"
	"github.com/JonMunkholm/natijti/internal/core"
	"github.com/JonMunkholm/natijti/internal/store"
	"github.com/JonMunkholm/natijti/internal/store/memory"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	b, err := store.Open(ctx, config.DatabaseConfig{Driver: "memory", Migrate: true})
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &memory.Store{}, b)
	assert.NoError(t, store.Ping(ctx, b))

	sess := core.ExamSession{Year: 2024, ExamType: core.ExamBAC, Published: true}
	require.NoError(t, b.CreateSession(ctx, &sess))
	got, err := b.FindSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ExamBAC, got.ExamType)
}

func TestOpen_SQLiteMigrates(t *testing.T) {
	ctx := context.Background()
	b, err := store.Open(ctx, config.DatabaseConfig{Driver: "SQLite", URL: "file::memory:", Migrate: true})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, store.Ping(ctx, b))
	regions, err := b.ListRegions(ctx)
	require.NoError(t, err)
	assert.Len(t, regions, 15)

	// Applying the schema twice is harmless.
	require.NoError(t, store.Migrate(ctx, b))
	regions, err = b.ListRegions(ctx)
	require.NoError(t, err)
	assert.Len(t, regions, 15)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := store.Open(ctx, config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, `unknown database driver "mysql"`)

	_, err = store.Open(ctx, config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)

	_, err = store.Open(ctx, config.DatabaseConfig{Driver: "postgres", URL: "://nope"})
	assert.Error(t, err)
}
