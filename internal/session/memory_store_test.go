package session_test

import (
	"testing"
	"time"

	"github.com/abrasadev/ordering-auth-go/internal/session"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := session.NewMemoryStore(0)

	if err := store.Save("tok1", testUser()); err != nil {
		t.Fatalf("save: %v", err)
	}

	sess, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess == nil || sess.Token != "tok1" {
		t.Fatalf("expected session back, got %+v", sess)
	}
}

func TestMemoryStore_ClearIdempotent(t *testing.T) {
	store := session.NewMemoryStore(0)

	if err := store.Save("tok1", testUser()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}

	sess, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess != nil {
		t.Fatal("expected absent session after clear")
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := session.NewMemoryStore(30 * time.Millisecond)

	if err := store.Save("tok1", testUser()); err != nil {
		t.Fatalf("save: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	sess, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess != nil {
		t.Fatal("expected expired session to be absent")
	}
}
