package session

import (
	"context"
)

// The registry replaces any ambient per-table global: exactly one Session
// per table id, created when a view ensures it and removed when the view
// leaves. Same inbox-actor shape as the rest of the engine.

type RegistryMsg interface{ isRegistryMsg() }

type EnsureSession struct {
	TableID int64
	Reply   chan *Session
}

type GetSession struct {
	TableID int64
	Reply   chan *Session // nil when no session exists
}

type RemoveSession struct{ TableID int64 }

type ShutdownRegistry struct{}

func (EnsureSession) isRegistryMsg()    {}
func (GetSession) isRegistryMsg()       {}
func (RemoveSession) isRegistryMsg()    {}
func (ShutdownRegistry) isRegistryMsg() {}

// Factory builds a session for a table id; the registry stays ignorant of
// transport wiring so tests can hand it fakes.
type Factory func(ctx context.Context, tableID int64) *Session

type Registry struct {
	inbox    chan RegistryMsg
	sessions map[int64]*Session
	factory  Factory
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewRegistry(parent context.Context, factory Factory) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:    make(chan RegistryMsg, 16),
		sessions: make(map[int64]*Session),
		factory:  factory,
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- RegistryMsg { return r.inbox }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case EnsureSession:
				if s := r.sessions[msg.TableID]; s != nil {
					msg.Reply <- s
					break
				}
				s := r.factory(r.ctx, msg.TableID)
				r.sessions[msg.TableID] = s
				msg.Reply <- s

			case GetSession:
				msg.Reply <- r.sessions[msg.TableID]

			case RemoveSession:
				if s := r.sessions[msg.TableID]; s != nil {
					s.Close()
					delete(r.sessions, msg.TableID)
				}

			case ShutdownRegistry:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) shutdown() {
	for id, s := range r.sessions {
		s.Close()
		delete(r.sessions, id)
	}
	r.cancel()
}
