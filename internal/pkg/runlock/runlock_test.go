package runlock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = payroll.RunKey{SiteID: "site-a", PayrollMonth: 4, PayrollYear: 2025}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocal(0)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots)
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)

	unlockA, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	defer unlockA()

	other := key
	other.PayrollMonth = 5
	unlockB, err := l.Lock(context.Background(), other)
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_TimesOut(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), key)
	assert.ErrorIs(t, err, payroll.ErrRunLockTimeout)
	assert.ErrorIs(t, err, payroll.ErrConflict)

	unlock()
	unlock() // second release is a no-op

	unlock, err = l.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock()
}

func TestValkeyLocker(t *testing.T) {
	addr := os.Getenv("TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("TEST_VALKEY_ADDR not set, skipping valkey tests")
	}

	client, err := NewValkeyClient(addr, os.Getenv("TEST_VALKEY_PASSWORD"), 0)
	require.NoError(t, err)
	defer client.Close()

	l := NewValkey(client, ValkeyOptions{Prefix: "test:runlock:", Wait: 200 * time.Millisecond, Retry: 20 * time.Millisecond})

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), key)
	assert.ErrorIs(t, err, payroll.ErrRunLockTimeout)

	unlock()

	unlock, err = l.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock()
}

func TestNewValkeyClient_EmptyAddress(t *testing.T) {
	_, err := NewValkeyClient("", "", 0)
	assert.Error(t, err)
}
