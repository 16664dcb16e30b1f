package badger_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/storage/badger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *badger.Database

func TestMain(m *testing.M) {
	tmpDir := os.TempDir()
	dbPath := filepath.Join(tmpDir, "badger_test_"+uuid.NewString())

	var err error
	testDB, err = badger.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	os.RemoveAll(dbPath)

	os.Exit(code)
}

func TestDatabase_PutGet(t *testing.T) {
	ctx := context.Background()
	key := uuid.NewString()
	require.NoError(t, testDB.Put(ctx, key, []byte(`{"1":{"deployed":false}}`)))

	cases := []struct {
		desc  string
		key   string
		value []byte
		err   error
	}{
		{
			desc:  "get existing snapshot",
			key:   key,
			value: []byte(`{"1":{"deployed":false}}`),
		},
		{
			desc: "get missing snapshot",
			key:  uuid.NewString(),
			err:  pkgerrors.ErrNotFound,
		},
		{
			desc: "get with empty key",
			key:  "",
			err:  pkgerrors.ErrEmptyKey,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			value, err := testDB.Get(ctx, tc.key)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err, fmt.Sprintf("%s: expected error %v, got %v", tc.desc, tc.err, err))

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.value, value)
		})
	}
}

func TestDatabase_PutReplaces(t *testing.T) {
	ctx := context.Background()
	key := uuid.NewString()

	require.NoError(t, testDB.Put(ctx, key, []byte("first")))
	require.NoError(t, testDB.Put(ctx, key, []byte("second")))

	value, err := testDB.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), value)
}

func TestDatabase_Delete(t *testing.T) {
	ctx := context.Background()
	key := uuid.NewString()
	require.NoError(t, testDB.Put(ctx, key, []byte("value")))

	require.NoError(t, testDB.Delete(ctx, key))

	_, err := testDB.Get(ctx, key)
	assert.ErrorIs(t, err, badger.ErrNotFound)
	assert.ErrorIs(t, testDB.Delete(ctx, ""), pkgerrors.ErrEmptyKey)
}
