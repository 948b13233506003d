package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labaccess-backend/pkg/logger"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestNewServiceRequiresARunner(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}

func TestServiceStopsOnFailedDependency(t *testing.T) {
	ran := false
	svc, err := NewService(ServiceParams{
		Logger: testLogger(),
		Dependencies: []dependency{{name: "database", ping: func(context.Context) error {
			return errors.New("down")
		}}},
		Consumer: runnerFunc(func(context.Context) error { ran = true; return nil }),
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorContains(t, err, "database ping failed")
	require.False(t, ran)
}

func TestServiceCancelsPollerWhenConsumerFails(t *testing.T) {
	boom := errors.New("receive failed")
	pollerStopped := make(chan struct{})
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Consumer: runnerFunc(func(context.Context) error { return boom }),
		Poller: runnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			close(pollerStopped)
			return ctx.Err()
		}),
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Run(context.Background()), boom)
	select {
	case <-pollerStopped:
	case <-time.After(time.Second):
		t.Fatalf("poller was not canceled")
	}
}

func TestServiceReturnsCanceledOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc, err := NewService(ServiceParams{
		Logger: testLogger(),
		Poller: runnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	})
	require.NoError(t, err)

	cancel()
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
}
