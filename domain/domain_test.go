package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

var ctx = context.Background()

type DomainTestSuite struct {
	suite.Suite
}

func (s *DomainTestSuite) TestOperationOptions() {
	var oos domain.OperationOptions
	st := &domain.State{}
	oo := []domain.OperationOption{
		domain.WithState(st),
		domain.WithVersion(3),
		domain.WithRaw(true),
		domain.WithSort(domain.Sort{{Key: "a", Order: -1}}),
		domain.WithSkip(2),
		domain.WithLimit(5),
	}
	for _, opt := range oo {
		opt(&oos)
	}
	s.Equal(domain.OperationOptions{
		State:   st,
		Version: 3,
		Raw:     true,
		Sort:    domain.Sort{{Key: "a", Order: -1}},
		Skip:    2,
		Limit:   5,
	}, oos)
}

func (s *DomainTestSuite) TestQueryOptions() {
	var qos domain.QueryOptions
	for _, opt := range []domain.QueryOption{
		domain.WithQuery(1),
		domain.WithQuerySort(domain.Sort{{Key: "b", Order: 1}}),
		domain.WithQuerySkip(-2),
		domain.WithQueryLimit(-3),
	} {
		opt(&qos)
	}
	s.Equal(domain.QueryOptions{
		Query: 1,
		Sort:  domain.Sort{{Key: "b", Order: 1}},
		Skip:  -2,
		Limit: -3,
	}, qos)
}

// Rollbacks run in reverse order, once each.
func (s *DomainTestSuite) TestRollbacksLIFO() {
	var rb domain.Rollbacks
	var order []int
	for i := range 3 {
		rb.Push(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}
	s.Equal(3, rb.Len())
	s.Empty(rb.Run(ctx))
	s.Equal([]int{2, 1, 0}, order)
	s.Equal(0, rb.Len())
	s.Empty(rb.Run(ctx))
	s.Equal([]int{2, 1, 0}, order)
}

// Every rollback runs even if some of them fail.
func (s *DomainTestSuite) TestRollbacksCollectErrors() {
	var rb domain.Rollbacks
	errA, errB := errors.New("a"), errors.New("b")
	ran := 0
	rb.Push(func(context.Context) error { ran++; return errA })
	rb.Push(func(context.Context) error { ran++; return nil })
	rb.Push(func(context.Context) error { ran++; return errB })
	s.Equal([]error{errB, errA}, rb.Run(ctx))
	s.Equal(3, ran)
}

func (s *DomainTestSuite) TestState() {
	var st domain.State
	_, ok := st.Get("a")
	s.False(ok)
	st.Set("a", 1)
	v, ok := st.Get("a")
	s.True(ok)
	s.Equal(1, v)
}

func (s *DomainTestSuite) TestErrorMessages() {
	s.Equal("lock time-out for _id abc",
		domain.ErrLockTimeout{ID: "abc", Timeout: time.Second}.Error())
	s.Equal("Could not find reference 'x' in rack 'users'",
		domain.ErrReferenceNotFound{Rack: "users", ID: "x"}.Error())
	s.Equal("primary keys (email, name) failed for document",
		domain.ErrUniqueConstraint{Keys: []string{"email", "name"}}.Error())
	s.Equal("name: required", domain.ErrValidation{Path: "name", Reason: "required"}.Error())
	s.Equal("a rack with the name users is already registered",
		domain.ErrRackExists{Name: "users"}.Error())
}

func (s *DomainTestSuite) TestErrorUnwrap() {
	cause := errors.New("cause")
	s.ErrorIs(domain.ErrHook{Lifecycle: domain.Before, Operation: domain.OpCreate, Err: cause}, cause)
	s.ErrorIs(domain.ErrMethod{Method: "m", Err: cause}, cause)
	s.ErrorIs(domain.ErrEvent{Event: "e", Err: cause}, cause)

	rbErr := errors.New("rollback")
	err := domain.ErrRollback{Hook: domain.ErrHook{Err: cause}, Errs: []error{rbErr}}
	s.ErrorIs(err, cause)
	s.ErrorIs(err, rbErr)
	var hookErr domain.ErrHook
	s.ErrorAs(err, &hookErr)
}

func TestDomainTestSuite(t *testing.T) {
	suite.Run(t, new(DomainTestSuite))
}
