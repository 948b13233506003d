package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/labaccess-backend/pkg/logger"
)

type runner interface {
	Run(ctx context.Context) error
}

type dependency struct {
	name string
	ping func(context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies []dependency
	Consumer     runner
	Poller       runner
}

// Service runs the submission consumer and the sheet poller side by side.
// Either may be absent but not both.
type Service struct {
	logg     *logger.Logger
	deps     []dependency
	consumer runner
	poller   runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil && params.Poller == nil {
		return nil, errors.New("a submission consumer or poller is required")
	}
	return &Service{
		logg:     params.Logger,
		deps:     params.Dependencies,
		consumer: params.Consumer,
		poller:   params.Poller,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := pingDependency(ctx, s.logg, dep.name, dep.ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or a runner exits. The first runner to
// stop cancels the other.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runners := map[string]runner{}
	if s.consumer != nil {
		runners["consumer"] = s.consumer
	}
	if s.poller != nil {
		runners["poller"] = s.poller
	}

	errCh := make(chan error, len(runners))
	for name, r := range runners {
		go func() {
			err := r.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, fmt.Sprintf("%s stopped unexpectedly", name), err)
			}
			errCh <- err
		}()
	}

	first := <-errCh
	cancel()
	for i := 1; i < len(runners); i++ {
		<-errCh
	}
	if first == nil && ctx.Err() != nil {
		return context.Canceled
	}
	return first
}
