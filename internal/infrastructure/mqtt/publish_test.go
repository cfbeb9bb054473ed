package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubToken is a paho Token whose completion the test controls.
type stubToken struct {
	done chan struct{}
	err  error
}

func newStubToken() *stubToken { return &stubToken{done: make(chan struct{})} }

func (t *stubToken) Wait() bool { <-t.done; return true }

func (t *stubToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *stubToken) Done() <-chan struct{} { return t.done }
func (t *stubToken) Error() error          { return t.err }

func TestWaitToken_Completed(t *testing.T) {
	tok := newStubToken()
	close(tok.done)

	if err := waitToken(context.Background(), tok, time.Second); err != nil {
		t.Errorf("waitToken() error = %v, want nil", err)
	}
}

func TestWaitToken_BrokerError(t *testing.T) {
	tok := newStubToken()
	tok.err = errors.New("not authorised")
	close(tok.done)

	if err := waitToken(context.Background(), tok, time.Second); !errors.Is(err, tok.err) {
		t.Errorf("waitToken() error = %v, want %v", err, tok.err)
	}
}

func TestWaitToken_ContextDeadline(t *testing.T) {
	tok := newStubToken()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := waitToken(ctx, tok, 5*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("waitToken() error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("waitToken() returned after %v, should follow the context deadline", elapsed)
	}
}

func TestWaitToken_Timeout(t *testing.T) {
	tok := newStubToken()

	err := waitToken(context.Background(), tok, 20*time.Millisecond)
	if err == nil {
		t.Fatal("waitToken() should time out on an unfinished token")
	}
}
