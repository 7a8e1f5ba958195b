package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/blackstore/internal/metrics"
)

func receive(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case change, ok := <-sub.Changes():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return change
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		sub, change string
		want        bool
	}{
		{sub: "users/u1", change: "users/u1", want: true},
		{sub: "orders/u1", change: "orders/u1/o1", want: true},
		{sub: "orders/u1", change: "orders/u10/o1", want: false},
		{sub: "users/u1", change: "users/u2", want: false},
	}
	for _, tc := range cases {
		if got := Matches(tc.sub, tc.change); got != tc.want {
			t.Errorf("Matches(%q, %q) = %v", tc.sub, tc.change, got)
		}
	}
}

func TestHub_DeliversToPrefixSubscribers(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	orders, err := hub.Subscribe(ctx, OrdersPath("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer orders.Close()
	profile, err := hub.Subscribe(ctx, UserPath("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer profile.Close()

	change, err := NewChange(OrderPath("u1", "o1"), ChangePut, map[string]string{"status": "ordered"})
	if err != nil {
		t.Fatalf("NewChange: %v", err)
	}
	if err := hub.Publish(ctx, change); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := receive(t, orders)
	if got.Path != "orders/u1/o1" || got.Kind != ChangePut || string(got.Data) != `{"status":"ordered"}` {
		t.Fatalf("unexpected change: %+v", got)
	}
	select {
	case c := <-profile.Changes():
		t.Fatalf("profile subscriber must not see order change: %+v", c)
	default:
	}
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	m := metrics.NewStoreMetricsWithRegisterer(prometheus.NewRegistry())
	hub := NewHub(WithBufferSize(1), WithHubMetrics(m))
	sub, err := hub.Subscribe(context.Background(), UserPath("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	for i := 0; i < 3; i++ {
		_ = hub.Publish(context.Background(), Change{Path: UserPath("u1"), Kind: ChangePatch})
	}

	receive(t, sub)
	select {
	case c := <-sub.Changes():
		t.Fatalf("expected dropped changes, got %+v", c)
	default:
	}
}

func TestHub_CloseAndContextCancel(t *testing.T) {
	hub := NewHub()

	sub, err := hub.Subscribe(context.Background(), UserPath("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub.Close()
	sub.Close()
	if _, ok := <-sub.Changes(); ok {
		t.Fatal("expected closed channel")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub2, err := hub.Subscribe(ctx, UserPath("u2"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-sub2.Changes():
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed on context cancel")
	}
	if n := hub.Subscribers(); n != 0 {
		t.Fatalf("subscribers = %d", n)
	}
}
