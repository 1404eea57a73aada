package diagcache

import (
	"testing"
	"time"
)

func TestPutGet(t *testing.T) {
	c := New(time.Minute)

	if _, ok := c.Get("aircraft.json"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("aircraft.json", []byte(`{"a":1}`), 0)

	data, ok := c.Get("aircraft.json")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if string(data) != `{"a":1}` {
		t.Errorf("data = %s, want {\"a\":1}", data)
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute)
	c.Put("sync.json", []byte("x"), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("sync.json"); ok {
		t.Error("expected miss after TTL elapsed")
	}
}
