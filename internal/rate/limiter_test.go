package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	base := time.Date(2026, 1, 10, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "alice")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}

	res, err := l.Allow(ctx, "alice")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth hit should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("retry-after should be positive, got %v", res.RetryAfter)
	}

	// Otra key no comparte la ventana.
	if res, _ := l.Allow(ctx, "bob"); !res.Allowed {
		t.Fatal("different key should be allowed")
	}

	// La ventana siguiente resetea el contador.
	l.now = func() time.Time { return base.Add(time.Minute) }
	if res, _ := l.Allow(ctx, "alice"); !res.Allowed {
		t.Fatal("next window should reset the counter")
	}
}
