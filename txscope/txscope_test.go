package txscope_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowline/rowline/store"
	"github.com/rowline/rowline/txscope"
)

func setup(t *testing.T) *store.DB {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rowline-*.db")
	require.NoError(t, err)
	f.Close()
	db, err := store.Make(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRun_CommitsOnSuccess(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	err := txscope.Run(ctx, db, func(s *txscope.Scope) error {
		return store.CreateRef(ctx, s, "ds", "main", "")
	})
	require.NoError(t, err)

	_, err = store.GetRef(ctx, db.DB, "ds", "main")
	assert.NoError(t, err)
}

func TestRun_RollsBackOnError(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	sentinel := assert.AnError
	err := txscope.Run(ctx, db, func(s *txscope.Scope) error {
		if cerr := store.CreateRef(ctx, s, "ds", "main", ""); cerr != nil {
			return cerr
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = store.GetRef(ctx, db.DB, "ds", "main")
	assert.True(t, store.Is(err, store.KindNotFound), "ref insert should have been rolled back")
}
