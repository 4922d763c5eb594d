package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parleyhq/parley/postgres"
	"github.com/parleyhq/parley/types"
)

// Broadcaster pushes events out to connected clients. The realtime hub
// implements it; a no-op stand-in serves tests.
type Broadcaster interface {
	ToRoom(room string, ev types.Event)
	ToUser(userID string, ev types.Event)
}

type Config struct {
	Postgres          *postgres.Postgres
	Broadcaster       Broadcaster
	BaseCtx           context.Context
	BackgroundTimeout time.Duration
}

type Service struct {
	Postgres    *postgres.Postgres
	Broadcaster Broadcaster

	baseCtx           context.Context
	backgroundTimeout time.Duration
	wg                sync.WaitGroup
	errs              chan error
	closeOnce         sync.Once
}

func New(cfg *Config) *Service {
	return &Service{
		Postgres:    cfg.Postgres,
		Broadcaster: cfg.Broadcaster,

		baseCtx:           cfg.BaseCtx,
		backgroundTimeout: cfg.BackgroundTimeout,
		errs:              make(chan error, 1),
	}
}

func (svc *Service) Errs() <-chan error {
	return svc.errs
}

// Close waits for in-flight background broadcasts. Safe to call more
// than once.
func (svc *Service) Close() error {
	svc.closeOnce.Do(func() {
		svc.wg.Wait()
		close(svc.errs)
	})
	return nil
}

func (svc *Service) background(fn func(ctx context.Context) error) {
	svc.wg.Go(func() {
		defer func() {
			if rcv := recover(); rcv != nil {
				select {
				case svc.errs <- fmt.Errorf("service background panic: %v", rcv):
				default:
				}
			}
		}()

		ctx, cancel := context.WithTimeout(svc.baseCtx, svc.backgroundTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			select {
			case svc.errs <- fmt.Errorf("service background error: %w", err):
			default:
			}
		}
	})
}
