package cartstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	redisStore := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	badgerStore, err := OpenBadger("", zerolog.Nop())
	require.NoError(t, err)

	t.Cleanup(func() {
		redisStore.Close()
		badgerStore.Close()
	})
	return map[string]Store{"redis": redisStore, "badger": badgerStore}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cart:3:17", EntryKey(3, 17))
	assert.Equal(t, "cart:3:total_price", TotalKey(3))
	assert.Equal(t, "cart:3:*", BuyerPattern(3))

	id, ok := ProductOf(3, "cart:3:17")
	assert.True(t, ok)
	assert.Equal(t, int64(17), id)

	_, ok = ProductOf(3, TotalKey(3))
	assert.False(t, ok)
	_, ok = ProductOf(3, "cart:31:17")
	assert.False(t, ok)
}

func TestHashCommands(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := EntryKey(1, 7)

			fields, err := store.HGetAll(ctx, key)
			require.NoError(t, err)
			assert.Empty(t, fields)

			require.NoError(t, store.HSet(ctx, key, map[string]string{FieldName: "Apples", FieldPrice: "2"}))
			n, err := store.HIncrBy(ctx, key, FieldAmount, 3)
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)
			n, err = store.HIncrBy(ctx, key, FieldAmount, -1)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			fields, err = store.HGetAll(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{FieldName: "Apples", FieldPrice: "2", FieldAmount: "2"}, fields)

			_, err = store.HIncrBy(ctx, key, FieldName, 1)
			assert.ErrorIs(t, err, shoperr.ErrCache)
		})
	}
}

func TestCounterCommands(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := TotalKey(1)

			_, found, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, found)

			n, err := store.IncrBy(ctx, key, 7)
			require.NoError(t, err)
			assert.Equal(t, int64(7), n)

			value, found, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "7", value)

			require.NoError(t, store.HSet(ctx, EntryKey(1, 1), map[string]string{FieldName: "x"}))
			_, err = store.IncrBy(ctx, EntryKey(1, 1), 1)
			assert.ErrorIs(t, err, shoperr.ErrCache)
		})
	}
}

func TestConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for range 50 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.IncrBy(ctx, TotalKey(9), 2)
					assert.NoError(t, err)
					_, err = store.HIncrBy(ctx, EntryKey(9, 1), FieldAmount, 1)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			value, _, err := store.Get(ctx, TotalKey(9))
			require.NoError(t, err)
			assert.Equal(t, "100", value)

			fields, err := store.HGetAll(ctx, EntryKey(9, 1))
			require.NoError(t, err)
			assert.Equal(t, "50", fields[FieldAmount])
		})
	}
}

func TestScanAllAndDel(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var want []string
			for product := int64(1); product <= 25; product++ {
				require.NoError(t, store.HSet(ctx, EntryKey(4, product), map[string]string{FieldAmount: "1"}))
				want = append(want, EntryKey(4, product))
			}
			_, err := store.IncrBy(ctx, TotalKey(4), 25)
			require.NoError(t, err)
			want = append(want, TotalKey(4))

			// another buyer whose id shares a prefix
			require.NoError(t, store.HSet(ctx, EntryKey(40, 1), map[string]string{FieldAmount: "1"}))

			keys, err := ScanAll(ctx, store, BuyerPattern(4), 10)
			require.NoError(t, err)
			sort.Strings(keys)
			sort.Strings(want)
			assert.Equal(t, want, keys)

			deleted, err := store.Del(ctx, append(keys, "cart:4:missing")...)
			require.NoError(t, err)
			assert.Equal(t, int64(len(want)), deleted)

			keys, err = ScanAll(ctx, store, BuyerPattern(4), 10)
			require.NoError(t, err)
			assert.Empty(t, keys)

			other, err := ScanAll(ctx, store, BuyerPattern(40), 10)
			require.NoError(t, err)
			assert.Equal(t, []string{EntryKey(40, 1)}, other)

			deleted, err = store.Del(ctx)
			require.NoError(t, err)
			assert.Zero(t, deleted)
		})
	}
}

func TestBadgerScanPagesByCount(t *testing.T) {
	store, err := OpenBadger("", zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, store.HSet(ctx, fmt.Sprintf("cart:1:%d", i), map[string]string{FieldAmount: "1"}))
	}

	keys, cursor, err := store.Scan(ctx, 0, BuyerPattern(1), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"cart:1:0", "cart:1:1"}, keys)
	require.NotZero(t, cursor)

	keys, cursor, err = store.Scan(ctx, cursor, BuyerPattern(1), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"cart:1:2", "cart:1:3"}, keys)
	require.NotZero(t, cursor)

	keys, cursor, err = store.Scan(ctx, cursor, BuyerPattern(1), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"cart:1:4"}, keys)
	assert.Zero(t, cursor)

	_, _, err = store.Scan(ctx, 987654, BuyerPattern(1), 2)
	assert.ErrorIs(t, err, shoperr.ErrCache)
}

func TestBadgerScanSurvivesDeletesBehindCursor(t *testing.T) {
	store, err := OpenBadger("", zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for product := int64(1); product <= 4; product++ {
		require.NoError(t, store.HSet(ctx, EntryKey(1, product), map[string]string{FieldAmount: "1"}))
	}

	batch, cursor, err := store.Scan(ctx, 0, BuyerPattern(1), 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	seen := append([]string{}, batch...)

	// another request drops a line that was already returned
	_, err = store.Del(ctx, batch[0])
	require.NoError(t, err)

	for cursor != 0 {
		batch, cursor, err = store.Scan(ctx, cursor, BuyerPattern(1), 2)
		require.NoError(t, err)
		seen = append(seen, batch...)
	}
	assert.Equal(t, []string{EntryKey(1, 1), EntryKey(1, 2), EntryKey(1, 3), EntryKey(1, 4)}, seen)
}
