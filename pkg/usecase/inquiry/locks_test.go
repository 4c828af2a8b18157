package inquiry

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/vinq-io/vinq/pkg/repository"
)

func TestSessionLockLifecycle(t *testing.T) {
	x := New(NewInput{Repo: repository.NewMemory()})

	unlock := x.lockSession("s1")
	unlock()
	unlock = x.lockSession("s2")
	unlock()
	gt.Equal(t, len(x.locks), 2)

	// Ending a session releases its lock entry, not just the stored state
	gt.NoError(t, x.EndSession(context.Background(), "s1"))
	gt.Equal(t, len(x.locks), 1)
	gt.NoError(t, x.EndSession(context.Background(), "s2"))
	gt.Equal(t, len(x.locks), 0)
}

func TestAnonymousTurnsDoNotShareLock(t *testing.T) {
	x := New(NewInput{Repo: repository.NewMemory()})

	// An empty ID means a session nobody else can address yet, so there is
	// nothing to serialize and nothing to retain
	unlock := x.lockSession("")
	second := x.lockSession("")
	second()
	unlock()
	gt.Equal(t, len(x.locks), 0)
}
