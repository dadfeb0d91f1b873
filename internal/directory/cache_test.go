package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeSource counts calls so tests can tell a cache hit from a pass-through.
type fakeSource struct {
	client    *ClientMapping
	names     []string
	err       error
	nameCalls int
	chanCalls int
	listCalls int
}

func (f *fakeSource) ClientByName(ctx context.Context, name string) (*ClientMapping, error) {
	f.nameCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func (f *fakeSource) ClientByChannelID(ctx context.Context, channelID string) (*ClientMapping, error) {
	f.chanCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func (f *fakeSource) SearchClients(ctx context.Context, query string) ([]ClientMapping, error) {
	if f.client == nil {
		return nil, nil
	}
	return []ClientMapping{*f.client}, nil
}

func (f *fakeSource) AllClientNames(ctx context.Context) ([]string, error) {
	f.listCalls++
	return f.names, nil
}

func (f *fakeSource) CreateClient(ctx context.Context, m *ClientMapping) (*ClientMapping, error) {
	return m, nil
}

func (f *fakeSource) UpdateClient(ctx context.Context, name string, updates map[string]any) (*ClientMapping, error) {
	if f.client == nil {
		return nil, ErrNotFound
	}
	return f.client, nil
}

func (f *fakeSource) EmployeeBySlackID(ctx context.Context, slackUserID string) (*Employee, error) {
	return nil, ErrNotFound
}

func (f *fakeSource) AllEmployees(ctx context.Context) ([]Employee, error) {
	return nil, nil
}

func testCache(t *testing.T, src Source) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(src, rdb, time.Minute, nil), mr
}

func TestCacheClientByName(t *testing.T) {
	src := &fakeSource{client: &ClientMapping{ClientName: "Acme", TrackerListID: "L1"}}
	c, _ := testCache(t, src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m, err := c.ClientByName(ctx, "Acme")
		if err != nil {
			t.Fatal(err)
		}
		if m.TrackerListID != "L1" {
			t.Errorf("list id = %q", m.TrackerListID)
		}
	}
	if src.nameCalls != 1 {
		t.Errorf("source called %d times, want 1", src.nameCalls)
	}
}

func TestCacheKeyIsCaseInsensitive(t *testing.T) {
	src := &fakeSource{client: &ClientMapping{ClientName: "Acme"}}
	c, _ := testCache(t, src)
	ctx := context.Background()

	if _, err := c.ClientByName(ctx, "Acme"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ClientByName(ctx, "ACME"); err != nil {
		t.Fatal(err)
	}
	if src.nameCalls != 1 {
		t.Errorf("source called %d times, want 1", src.nameCalls)
	}
}

func TestCacheMissOnError(t *testing.T) {
	src := &fakeSource{err: ErrNotFound}
	c, _ := testCache(t, src)
	ctx := context.Background()

	if _, err := c.ClientByName(ctx, "Nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// Failures are not cached.
	if _, err := c.ClientByName(ctx, "Nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}
	if src.nameCalls != 2 {
		t.Errorf("source called %d times, want 2", src.nameCalls)
	}
}

func TestCacheExpiry(t *testing.T) {
	src := &fakeSource{names: []string{"Acme", "Globex"}}
	c, mr := testCache(t, src)
	ctx := context.Background()

	if _, err := c.AllClientNames(ctx); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := c.AllClientNames(ctx); err != nil {
		t.Fatal(err)
	}
	if src.listCalls != 2 {
		t.Errorf("source called %d times after expiry, want 2", src.listCalls)
	}
}

func TestWriteInvalidatesCache(t *testing.T) {
	src := &fakeSource{client: &ClientMapping{ClientName: "Acme"}, names: []string{"Acme"}}
	c, _ := testCache(t, src)
	ctx := context.Background()

	if _, err := c.ClientByName(ctx, "Acme"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AllClientNames(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.UpdateClient(ctx, "Acme", map[string]any{"notes": "renewed"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ClientByName(ctx, "Acme"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AllClientNames(ctx); err != nil {
		t.Fatal(err)
	}
	if src.nameCalls != 2 || src.listCalls != 2 {
		t.Errorf("calls after invalidation = name %d, list %d; want 2, 2", src.nameCalls, src.listCalls)
	}
}

func TestCacheSurvivesRedisOutage(t *testing.T) {
	src := &fakeSource{client: &ClientMapping{ClientName: "Acme"}}
	c, mr := testCache(t, src)
	mr.Close()

	m, err := c.ClientByName(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("lookup should fall through to source, got %v", err)
	}
	if m.ClientName != "Acme" {
		t.Errorf("client = %q", m.ClientName)
	}
}
