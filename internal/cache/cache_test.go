package cache

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a := Key("unique-values", "Factory")
	b := Key("unique-values", "Category")

	if a == b {
		t.Error("expected different keys for different params")
	}
	if !strings.HasPrefix(a, "incidentlens:v1:unique-values:") {
		t.Errorf("unexpected key format: %s", a)
	}
	if Key("columns") != Key("columns") {
		t.Error("expected stable keys")
	}
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache(NoExpiration, time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}

	_ = c.Set("k", []byte(`{"columns":[]}`), NoExpiration)
	v, ok := c.Get("k")
	if !ok || string(v) != `{"columns":[]}` {
		t.Fatalf("unexpected value %q (hit=%v)", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(NoExpiration, time.Minute)
	_ = c.Set("k", []byte("v"), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache(NoExpiration, time.Minute)
	_ = c.Set("a", []byte("1"), NoExpiration)
	_ = c.Set("b", []byte("2"), NoExpiration)

	_ = c.Clear()

	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestFetch(t *testing.T) {
	c := NewMemoryCache(NoExpiration, time.Minute)
	calls := 0
	fill := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	v, hit, err := Fetch(c, "k", NoExpiration, fill)
	if err != nil || hit || string(v) != "computed" {
		t.Fatalf("first fetch: v=%q hit=%v err=%v", v, hit, err)
	}

	v, hit, err = Fetch(c, "k", NoExpiration, fill)
	if err != nil || !hit || string(v) != "computed" {
		t.Fatalf("second fetch: v=%q hit=%v err=%v", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("expected fill to run once, ran %d times", calls)
	}
}

func TestFetch_ErrorNotCached(t *testing.T) {
	c := NewMemoryCache(NoExpiration, time.Minute)
	boom := errors.New("boom")

	if _, _, err := Fetch(c, "k", NoExpiration, func() ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("failed fill must not be cached")
	}
}

func TestFetch_NilCache(t *testing.T) {
	v, hit, err := Fetch(nil, "k", NoExpiration, func() ([]byte, error) { return []byte("x"), nil })
	if err != nil || hit || string(v) != "x" {
		t.Fatalf("unexpected result v=%q hit=%v err=%v", v, hit, err)
	}
}
