package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/hooks"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/schema"
)

var ctx = context.Background()

type M = data.M

type fakeRack struct {
	domain.Rack
	*hooks.Pipeline
	schema domain.Schema
}

func (f *fakeRack) Schema() domain.Schema { return f.schema }

func (f *fakeRack) Hook(l domain.Lifecycle, op domain.Operation, fn domain.HookFunc) {
	f.Pipeline.Hook(l, op, fn)
}

func (f *fakeRack) Trigger(ctx context.Context, l domain.Lifecycle, op domain.Operation, p *domain.Payload, rb *domain.Rollbacks) error {
	return f.Pipeline.Trigger(ctx, l, op, p, rb)
}

// targetMock keeps its mock in a named field because domain.Rack also has an
// On method.
type targetMock struct {
	domain.Rack
	m mock.Mock
}

// FindOneByID implements domain.Rack.
func (t *targetMock) FindOneByID(ctx context.Context, id any, opts ...domain.OperationOption) (domain.Document, error) {
	call := t.m.Called(id)
	doc, _ := call.Get(0).(domain.Document)
	return doc, call.Error(1)
}

type registryMock struct {
	domain.Registry
	m mock.Mock
}

// Rack implements domain.Registry.
func (r *registryMock) Rack(name string) (domain.Rack, error) {
	call := r.m.Called(name)
	rack, _ := call.Get(0).(domain.Rack)
	return rack, call.Error(1)
}

type ReferenceTestSuite struct {
	suite.Suite
	registry *registryMock
	users    *targetMock
	rack     *fakeRack
}

func (s *ReferenceTestSuite) SetupTest() {
	s.registry = new(registryMock)
	s.users = new(targetMock)
	s.registry.m.On("Rack", "user").Return(s.users, nil).Maybe()
	s.registry.m.On("Rack", "ghost").Return(nil, domain.ErrRackNotFound{Name: "ghost"}).Maybe()

	s.rack = &fakeRack{
		Pipeline: hooks.NewPipeline(),
		schema: schema.NewSchema(map[string]domain.Field{
			"title": {Type: domain.TypeString},
			"owner": {Rack: "user"},
			"meta": {Fields: map[string]domain.Field{
				"reviewer": {Rack: "user"},
			}},
		}),
	}
	s.NoError(NewPlugin(WithConcurrency(2))(ctx, domain.PluginParams{
		Registry: s.registry,
		Rack:     s.rack,
	}))
}

func (s *ReferenceTestSuite) trigger(l domain.Lifecycle, op domain.Operation, p *domain.Payload) error {
	return s.rack.Trigger(ctx, l, op, p, &domain.Rollbacks{})
}

// Racks without references get no hooks.
func (s *ReferenceTestSuite) TestNoReferences() {
	rack := &fakeRack{
		Pipeline: hooks.NewPipeline(),
		schema:   schema.NewSchema(map[string]domain.Field{"title": {}}),
	}
	s.NoError(NewPlugin()(ctx, domain.PluginParams{Registry: s.registry, Rack: rack}))
	s.Zero(rack.Len(domain.Before, domain.OpCreate))
	s.Zero(rack.Len(domain.After, domain.OpList))
}

func (s *ReferenceTestSuite) TestCheckExisting() {
	s.users.m.On("FindOneByID", "u1").Return(M{"_id": "u1"}, nil).Once()
	p := &domain.Payload{Entry: M{"title": "a", "owner": "u1"}}
	s.NoError(s.trigger(domain.Before, domain.OpCreate, p))
	s.Equal(M{"title": "a", "owner": "u1"}, p.Entry)
	s.users.m.AssertExpectations(s.T())
}

// A dangling reference fails the create.
func (s *ReferenceTestSuite) TestCheckMissing() {
	s.users.m.On("FindOneByID", "u9").Return(nil, domain.ErrNotFound).Once()
	p := &domain.Payload{Entry: M{"meta": M{"reviewer": "u9"}}}
	err := s.trigger(domain.Before, domain.OpCreate, p)

	var refErr domain.ErrReferenceNotFound
	s.Require().ErrorAs(err, &refErr)
	s.Equal(domain.ErrReferenceNotFound{Rack: "user", ID: "u9", Path: "meta.reviewer"}, refErr)
	s.EqualError(refErr, "Could not find reference 'u9' in rack 'user'")
}

// Absent and null references are not checked.
func (s *ReferenceTestSuite) TestCheckAbsent() {
	s.NoError(s.trigger(domain.Before, domain.OpCreate, &domain.Payload{Entry: M{"owner": nil}}))
	s.users.m.AssertNotCalled(s.T(), "FindOneByID", mock.Anything)
}

func (s *ReferenceTestSuite) TestUnknownRack() {
	rack := &fakeRack{
		Pipeline: hooks.NewPipeline(),
		schema:   schema.NewSchema(map[string]domain.Field{"x": {Rack: "ghost"}}),
	}
	s.NoError(NewPlugin()(ctx, domain.PluginParams{Registry: s.registry, Rack: rack}))
	err := rack.Trigger(ctx, domain.Before, domain.OpCreate, &domain.Payload{Entry: M{"x": "1"}}, &domain.Rollbacks{})
	s.ErrorAs(err, new(domain.ErrRackNotFound))
}

func (s *ReferenceTestSuite) TestLoadAfterRead() {
	s.users.m.On("FindOneByID", "u1").Return(M{"_id": "u1", "name": "Ana"}, nil)
	p := &domain.Payload{Entry: M{"owner": "u1", "meta": M{"reviewer": "u1"}}}
	s.NoError(s.trigger(domain.After, domain.OpRead, p))
	s.Equal(M{
		"owner": M{"_id": "u1", "name": "Ana"},
		"meta":  M{"reviewer": M{"_id": "u1", "name": "Ana"}},
	}, p.Entry)
}

func (s *ReferenceTestSuite) TestLoadAfterCreate() {
	s.users.m.On("FindOneByID", "u1").Return(M{"_id": "u1"}, nil)
	p := &domain.Payload{Entry: M{"owner": "u1"}}
	s.NoError(s.trigger(domain.After, domain.OpCreate, p))
	s.Equal(M{"owner": M{"_id": "u1"}}, p.Entry)
}

func (s *ReferenceTestSuite) TestLoadList() {
	s.users.m.On("FindOneByID", "u1").Return(M{"_id": "u1"}, nil)
	s.users.m.On("FindOneByID", "u2").Return(M{"_id": "u2"}, nil)

	p := &domain.Payload{Result: []domain.Document{
		M{"owner": "u1"}, M{"owner": "u2"}, M{"title": "none"}, M{"owner": "u1"},
	}}
	s.NoError(s.trigger(domain.After, domain.OpList, p))
	s.Equal([]domain.Document{
		M{"owner": M{"_id": "u1"}},
		M{"owner": M{"_id": "u2"}},
		M{"title": "none"},
		M{"owner": M{"_id": "u1"}},
	}, p.Result)
}

func (s *ReferenceTestSuite) TestLoadListRaw() {
	p := &domain.Payload{Raw: true, Result: []domain.Document{M{"owner": "u1"}}}
	s.NoError(s.trigger(domain.After, domain.OpList, p))
	s.Equal([]domain.Document{M{"owner": "u1"}}, p.Result)
	s.users.m.AssertNotCalled(s.T(), "FindOneByID", mock.Anything)
}

func (s *ReferenceTestSuite) TestLoadListError() {
	errDown := errors.New("down")
	s.users.m.On("FindOneByID", "u1").Return(nil, errDown)
	p := &domain.Payload{Result: []domain.Document{M{"owner": "u1"}, M{"owner": "u1"}}}
	s.ErrorIs(s.trigger(domain.After, domain.OpList, p), errDown)
}

func TestReferenceTestSuite(t *testing.T) {
	suite.Run(t, new(ReferenceTestSuite))
}
