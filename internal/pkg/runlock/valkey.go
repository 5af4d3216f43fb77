package runlock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// Compare-and-delete so a holder whose lease expired cannot release someone else's lock.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// ValkeyLocker serializes run creation across replicas with a leased key.
type ValkeyLocker struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

type ValkeyOptions struct {
	Prefix string
	TTL    time.Duration
	Wait   time.Duration
	Retry  time.Duration
}

func NewValkey(client valkey.Client, opts ValkeyOptions) *ValkeyLocker {
	if opts.Prefix == "" {
		opts.Prefix = "payroll:runlock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Minute
	}
	if opts.Wait <= 0 {
		opts.Wait = 10 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 100 * time.Millisecond
	}
	return &ValkeyLocker{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		wait:   opts.Wait,
		retry:  opts.Retry,
	}
}

// NewValkeyClient connects to a single valkey node.
func NewValkeyClient(addr, password string, db int) (valkey.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("runlock: valkey address is empty")
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
		SelectDB:    db,
	})
	if err != nil {
		return nil, fmt.Errorf("runlock: failed to connect to valkey: %w", err)
	}
	return client, nil
}

func (l *ValkeyLocker) keyName(key payroll.RunKey) string {
	return fmt.Sprintf("%s%s:%04d-%02d", l.prefix, key.SiteID, key.PayrollYear, key.PayrollMonth)
}

func (l *ValkeyLocker) Lock(ctx context.Context, key payroll.RunKey) (func(), error) {
	name := l.keyName(key)
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		cmd := l.client.B().Set().Key(name).Value(token).Nx().PxMilliseconds(l.ttl.Milliseconds()).Build()
		err := l.client.Do(ctx, cmd).Error()
		if err == nil {
			return func() { l.unlock(name, token) }, nil
		}
		if !valkey.IsValkeyNil(err) {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w (%v)", payroll.ErrRunLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("runlock: failed to acquire %s: %w", name, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w (%v)", payroll.ErrRunLockTimeout, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

func (l *ValkeyLocker) unlock(name, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := l.client.B().Eval().Script(releaseScript).Numkeys(1).Key(name).Arg(token).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		slog.Warn("runlock: failed to release lock", "key", name, "error", err)
	}
}

var _ payroll.RunLocker = (*ValkeyLocker)(nil)
