package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

var ctx = context.Background()

type HooksTestSuite struct {
	suite.Suite
	p *Pipeline
}

func (s *HooksTestSuite) SetupTest() {
	s.p = NewPipeline()
}

func (s *HooksTestSuite) record(order *[]string, name string) domain.HookFunc {
	return func(context.Context, *domain.Payload, *domain.Rollbacks) error {
		*order = append(*order, name)
		return nil
	}
}

// Hooks should run in registration order and only for their own lifecycle
// and operation.
func (s *HooksTestSuite) TestRegistrationOrder() {
	var order []string
	s.p.Hook(domain.Before, domain.OpCreate, s.record(&order, "a"))
	s.p.Hook(domain.After, domain.OpCreate, s.record(&order, "after"))
	s.p.Hook(domain.Before, domain.OpUpdate, s.record(&order, "update"))
	s.p.Hook(domain.Before, domain.OpCreate, s.record(&order, "b"))

	s.NoError(s.p.Trigger(ctx, domain.Before, domain.OpCreate, &domain.Payload{}, &domain.Rollbacks{}))
	s.Equal([]string{"a", "b"}, order)
	s.Equal(2, s.p.Len(domain.Before, domain.OpCreate))
	s.Equal(0, s.p.Len(domain.After, domain.OpList))
}

// Every hook receives the same payload.
func (s *HooksTestSuite) TestSharedPayload() {
	s.p.Hook(domain.Before, domain.OpList, func(_ context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
		p.Limit = 10
		return nil
	})
	s.p.Hook(domain.Before, domain.OpList, func(_ context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
		p.Limit *= 2
		return nil
	})
	p := &domain.Payload{}
	s.NoError(s.p.Trigger(ctx, domain.Before, domain.OpList, p, &domain.Rollbacks{}))
	s.Equal(int64(20), p.Limit)
}

// Triggering an operation without hooks is a no-op.
func (s *HooksTestSuite) TestNoHooks() {
	p := &domain.Payload{ID: "x"}
	s.NoError(s.p.Trigger(ctx, domain.Before, domain.OpApply, p, nil))
	s.Equal(&domain.Payload{ID: "x"}, p)
}

// A failing hook should stop the sequence, run rollbacks in reverse order
// and return a wrapped error.
func (s *HooksTestSuite) TestFailureRunsRollbacks() {
	errBoom := errors.New("boom")
	var order []string

	s.p.Hook(domain.Before, domain.OpUpdate, func(_ context.Context, _ *domain.Payload, rb *domain.Rollbacks) error {
		rb.Push(func(context.Context) error {
			order = append(order, "first")
			return nil
		})
		rb.Push(func(context.Context) error {
			order = append(order, "second")
			return nil
		})
		return nil
	})
	s.p.Hook(domain.Before, domain.OpUpdate, func(context.Context, *domain.Payload, *domain.Rollbacks) error {
		return errBoom
	})
	s.p.Hook(domain.Before, domain.OpUpdate, s.record(&order, "never"))

	rb := &domain.Rollbacks{}
	err := s.p.Trigger(ctx, domain.Before, domain.OpUpdate, &domain.Payload{}, rb)
	s.ErrorIs(err, errBoom)

	var hookErr domain.ErrHook
	s.Require().ErrorAs(err, &hookErr)
	s.Equal(domain.Before, hookErr.Lifecycle)
	s.Equal(domain.OpUpdate, hookErr.Operation)

	s.Equal([]string{"second", "first"}, order)
	s.Equal(0, rb.Len())
}

// Failed rollbacks should surface as a distinct error that still carries
// the hook failure.
func (s *HooksTestSuite) TestRollbackFailure() {
	errBoom := errors.New("boom")
	errUndo := errors.New("undo")

	s.p.Hook(domain.After, domain.OpCreate, func(_ context.Context, _ *domain.Payload, rb *domain.Rollbacks) error {
		rb.Push(func(context.Context) error { return errUndo })
		return errBoom
	})

	err := s.p.Trigger(ctx, domain.After, domain.OpCreate, &domain.Payload{}, &domain.Rollbacks{})
	var rbErr domain.ErrRollback
	s.Require().ErrorAs(err, &rbErr)
	s.Equal([]error{errUndo}, rbErr.Errs)
	s.ErrorIs(err, errBoom)
	s.ErrorIs(err, errUndo)
	s.ErrorAs(err, new(domain.ErrHook))
}

// Without a rollback list the hook error is returned as is.
func (s *HooksTestSuite) TestNilRollbacks() {
	errBoom := errors.New("boom")
	s.p.Hook(domain.Before, domain.OpRead, func(context.Context, *domain.Payload, *domain.Rollbacks) error {
		return errBoom
	})
	err := s.p.Trigger(ctx, domain.Before, domain.OpRead, &domain.Payload{}, nil)
	s.ErrorIs(err, errBoom)
	s.ErrorAs(err, new(domain.ErrHook))
}

// Hooks registered while other goroutines trigger should not race.
func (s *HooksTestSuite) TestConcurrentHookAndTrigger() {
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.p.Hook(domain.Before, domain.OpList, func(context.Context, *domain.Payload, *domain.Rollbacks) error {
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = s.p.Trigger(ctx, domain.Before, domain.OpList, &domain.Payload{}, &domain.Rollbacks{})
		}()
	}
	wg.Wait()
	s.Equal(50, s.p.Len(domain.Before, domain.OpList))
}

func TestHooksTestSuite(t *testing.T) {
	suite.Run(t, new(HooksTestSuite))
}
