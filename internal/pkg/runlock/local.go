package runlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
)

// LocalLocker serializes run creation per key inside one process.
type LocalLocker struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[payroll.RunKey]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns a locker whose callers give up after wait; zero waits on ctx only.
func NewLocal(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, slots: make(map[payroll.RunKey]*slot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key payroll.RunKey) (func(), error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, fmt.Errorf("%w (%v)", payroll.ErrRunLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *LocalLocker) release(key payroll.RunKey, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

var _ payroll.RunLocker = (*LocalLocker)(nil)
