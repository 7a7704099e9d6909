package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

var _ ports.UserLocks = (*UserLocks)(nil)

// UserLocks lock lectores/escritor por usuario para un solo proceso.
// A diferencia de sync.RWMutex, un Shared pedido durante una restauración falla
// en vez de esperar, y Exclusive respeta la cancelación del contexto.
type UserLocks struct {
	mu    sync.Mutex
	users map[string]*userLock
}

type userLock struct {
	readers   int
	exclusive bool
	drained   chan struct{}
}

// NewUserLocks construye el registro de locks.
func NewUserLocks() *UserLocks {
	return &UserLocks{users: map[string]*userLock{}}
}

func (l *UserLocks) get(userID string) *userLock {
	st, ok := l.users[userID]
	if !ok {
		st = &userLock{}
		l.users[userID] = st
	}
	return st
}

func (l *UserLocks) gc(userID string, st *userLock) {
	if st.readers == 0 && !st.exclusive {
		delete(l.users, userID)
	}
}

// Shared lo toman las escrituras normales; conviven entre sí.
func (l *UserLocks) Shared(_ context.Context, userID string) (ports.Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.get(userID)
	if st.exclusive {
		return nil, domain.ErrRestoreInProgress
	}
	st.readers++
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			st.readers--
			if st.readers == 0 && st.drained != nil {
				close(st.drained)
				st.drained = nil
			}
			l.gc(userID, st)
		})
	}, nil
}

// Exclusive marca la restauración (los Shared nuevos fallan desde ya) y espera
// a que terminen los Shared en curso.
func (l *UserLocks) Exclusive(ctx context.Context, userID string) (ports.Release, error) {
	l.mu.Lock()
	st := l.get(userID)
	if st.exclusive {
		l.mu.Unlock()
		return nil, domain.ErrRestoreInProgress
	}
	st.exclusive = true
	for st.readers > 0 {
		if st.drained == nil {
			st.drained = make(chan struct{})
		}
		wait := st.drained
		l.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			l.mu.Lock()
			st.exclusive = false
			l.gc(userID, st)
			l.mu.Unlock()
			return nil, ctx.Err()
		}
		l.mu.Lock()
	}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			st.exclusive = false
			l.gc(userID, st)
		})
	}, nil
}
