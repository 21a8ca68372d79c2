package cache

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

func recv(t *testing.T, ch chan []string) []string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("no snapshot delivered")
		return nil
	}
}

func TestFeed_ReplayLatestOnSubscribe(t *testing.T) {
	t.Parallel()
	f := NewFeed[string](zap.NewNop())

	early := f.Subscribe()
	if got := recv(t, early.C); len(got) != 0 {
		t.Fatalf("want empty initial snapshot, got %v", got)
	}

	f.Replace([]string{"a", "b"})

	late := f.Subscribe()
	if got := recv(t, late.C); len(got) != 2 || got[0] != "a" {
		t.Fatalf("late subscriber must see current state, got %v", got)
	}
	if got := recv(t, early.C); len(got) != 2 {
		t.Fatalf("early subscriber must see replacement, got %v", got)
	}
}

func TestFeed_SnapshotIsACopy(t *testing.T) {
	t.Parallel()
	f := NewFeed[string](zap.NewNop())
	f.Replace([]string{"a"})

	snap := f.Snapshot()
	snap[0] = "mutated"

	if got := f.Snapshot(); got[0] != "a" {
		t.Fatalf("owned collection corrupted by consumer: %v", got)
	}

	sub := f.Subscribe()
	delivered := recv(t, sub.C)
	delivered[0] = "mutated"
	if got := f.Snapshot(); got[0] != "a" {
		t.Fatalf("owned collection corrupted through delivery: %v", got)
	}
}

func TestFeed_SlowSubscriberConvergesToLatest(t *testing.T) {
	t.Parallel()
	f := NewFeed[string](zap.NewNop())
	sub := f.Subscribe()

	for i := 0; i < 100; i++ {
		f.Replace([]string{fmt.Sprintf("v%d", i)})
	}

	var last []string
	for {
		select {
		case v := <-sub.C:
			last = v
			continue
		default:
		}
		break
	}
	if len(last) != 1 || last[0] != "v99" {
		t.Fatalf("want final snapshot v99, got %v", last)
	}
}

func TestFeed_UnsubscribeAndClose(t *testing.T) {
	t.Parallel()
	f := NewFeed[string](zap.NewNop())

	sub := f.Subscribe()
	<-sub.C
	f.Unsubscribe(sub)
	select {
	case <-sub.Done():
	default:
		t.Fatalf("Done must be closed after Unsubscribe")
	}
	f.Unsubscribe(sub) // idempotent
	f.Replace([]string{"a"})
	select {
	case v := <-sub.C:
		t.Fatalf("detached subscriber received %v", v)
	default:
	}

	other := f.Subscribe()
	f.Close()
	select {
	case <-other.Done():
	default:
		t.Fatalf("Done must be closed after Close")
	}
	if got := f.Subscribe(); got == nil {
		t.Fatalf("Subscribe after Close must still return a terminated subscription")
	}
}
