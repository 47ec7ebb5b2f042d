package rack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/lock"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/memstore"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/schema"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/unique"
)

var ctx = context.Background()

type M = data.M

var errBroken = errors.New("broken")

type RackTestSuite struct {
	suite.Suite
	rack   domain.Rack
	mu     sync.Mutex
	events []domain.Event
}

func (s *RackTestSuite) SetupTest() {
	s.events = nil
	sch := schema.NewSchema(map[string]domain.Field{
		"firstName": {Type: domain.TypeString, Required: true},
		"lastName":  {Type: domain.TypeString},
		"email":     {Type: domain.TypeString, Unique: true},
		"n":         {Type: domain.TypeNumber},
		"address": {Fields: map[string]domain.Field{
			"city": {Type: domain.TypeString},
		}},
	},
		schema.WithVirtuals(map[string]domain.Virtual{
			"fullName": {Get: func(d domain.Document) any {
				return fmt.Sprintf("%v %v", d.Get("firstName"), d.Get("lastName"))
			}},
		}),
		schema.WithMethods("", map[string]domain.Method{
			"rename": {
				Events: []string{"renamed"},
				Handler: func(_ context.Context, m domain.Model, payload any) (any, error) {
					old, _ := m.Get("firstName")
					if err := m.Set("firstName", payload); err != nil {
						return nil, err
					}
					return old, m.Emit("renamed", old, payload)
				},
			},
			"shout": {Handler: func(_ context.Context, m domain.Model, _ any) (any, error) {
				return nil, m.Emit("shouted")
			}},
			"fail": {Handler: func(context.Context, domain.Model, any) (any, error) {
				return nil, errBroken
			}},
		}),
		schema.WithMethods("address", map[string]domain.Method{
			"move": {Handler: func(_ context.Context, m domain.Model, payload any) (any, error) {
				return nil, m.Set("city", payload)
			}},
		}),
	)

	r, err := NewRack("person", sch,
		domain.WithRackMethods(map[string]domain.RackMethod{
			"count": {
				Output: schema.NewSchema(map[string]domain.Field{"total": {Type: domain.TypeNumber}}),
				Handler: func(ctx context.Context, r domain.Rack, _ any) (any, error) {
					docs, err := r.List(ctx, nil, domain.WithRaw(true))
					return M{"total": len(docs)}, err
				},
			},
			"greet": {
				Input: schema.NewSchema(map[string]domain.Field{"name": {Type: domain.TypeString, Required: true}}),
				Handler: func(_ context.Context, _ domain.Rack, input any) (any, error) {
					return "hi " + input.(domain.Document).Get("name").(string), nil
				},
			},
			"broken": {Handler: func(context.Context, domain.Rack, any) (any, error) {
				return nil, errBroken
			}},
		}),
		domain.WithRackEvents(map[string]domain.Schema{
			"ping": schema.NewSchema(map[string]domain.Field{"msg": {Type: domain.TypeString, Required: true}}),
			"tick": nil,
		}),
	)
	s.Require().NoError(err)

	for _, plugin := range []domain.Plugin{lock.NewPlugin(), unique.NewPlugin(), memstore.NewPlugin()} {
		s.Require().NoError(plugin(ctx, domain.PluginParams{Rack: r}))
	}
	r.On(func(_ context.Context, e domain.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events = append(s.events, e)
	})
	s.rack = r
}

func (s *RackTestSuite) named(name string) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Event
	for _, e := range s.events {
		if e.Name == name {
			res = append(res, e)
		}
	}
	return res
}

func (s *RackTestSuite) create(doc M) domain.Document {
	created, err := s.rack.Create(ctx, doc)
	s.Require().NoError(err)
	return created
}

func (s *RackTestSuite) TestNewRack() {
	_, err := NewRack("", schema.NewSchema(nil))
	s.ErrorIs(err, ErrNameRequired)

	_, err = NewRack("x", nil)
	s.Error(err)

	s.Equal("person", s.rack.Name())
	s.NotNil(s.rack.Schema())
}

func (s *RackTestSuite) TestCreate() {
	created := s.create(M{"firstName": "Martin", "lastName": "Gonzalez"})
	s.NotEmpty(created.ID())
	s.Equal(int64(1), created.Get("_v"))
	s.Equal("Martin Gonzalez", created.Get("fullName"))

	events := s.named(domain.EventCreate)
	s.Require().Len(events, 1)
	s.Equal("person", events[0].Rack)
	s.Equal(created, events[0].Payload)

	// virtuals are not stored
	stored, err := s.rack.FindOneByID(ctx, created.ID())
	s.NoError(err)
	s.False(stored.Has("fullName"))
}

func (s *RackTestSuite) TestCreateInvalid() {
	_, err := s.rack.Create(ctx, "not an object")
	s.ErrorIs(err, domain.ErrInvalidEntry)

	_, err = s.rack.Create(ctx, M{"firstName": "a", "_v": "one"})
	s.ErrorIs(err, domain.ErrInvalidVersion)

	_, err = s.rack.Create(ctx, M{"lastName": "a"})
	s.ErrorAs(err, new(domain.ErrValidation))

	s.Empty(s.named(domain.EventCreate))
}

func (s *RackTestSuite) TestCreateDuplicateID() {
	s.create(M{"_id": "a", "firstName": "A"})
	_, err := s.rack.Create(ctx, M{"_id": "a", "firstName": "B"})
	s.ErrorIs(err, domain.ErrEntryExists)
	s.ErrorAs(err, new(domain.ErrHook))
}

func (s *RackTestSuite) TestCreateUnique() {
	s.create(M{"firstName": "A", "email": "a@x.io"})
	_, err := s.rack.Create(ctx, M{"firstName": "B", "email": "a@x.io"})
	s.ErrorAs(err, new(domain.ErrUniqueConstraint))

	docs, err := s.rack.List(ctx, nil)
	s.NoError(err)
	s.Len(docs, 1)
}

// A failing after hook undoes what the before hooks stored.
func (s *RackTestSuite) TestCreateRollback() {
	s.rack.Hook(domain.After, domain.OpCreate, func(context.Context, *domain.Payload, *domain.Rollbacks) error {
		return errBroken
	})
	_, err := s.rack.Create(ctx, M{"_id": "a", "firstName": "A"})
	s.ErrorIs(err, errBroken)

	_, err = s.rack.FindOneByID(ctx, "a")
	s.ErrorIs(err, domain.ErrNotFound)
	s.Empty(s.named(domain.EventCreate))
}

func (s *RackTestSuite) TestRead() {
	created := s.create(M{"_id": "a", "firstName": "Ana", "lastName": "Lee"})

	read, err := s.rack.Read(ctx, "a")
	s.NoError(err)
	s.Equal(created, read)
	s.Len(s.named(domain.EventRead), 1)

	read.Set("firstName", "Changed")
	again, err := s.rack.Read(ctx, "a")
	s.NoError(err)
	s.Equal("Ana", again.Get("firstName"))

	_, err = s.rack.Read(ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RackTestSuite) TestFindOneByIDVersion() {
	s.create(M{"_id": "a", "firstName": "Ana"})

	_, err := s.rack.FindOneByID(ctx, "a", domain.WithVersion(1))
	s.NoError(err)

	_, err = s.rack.FindOneByID(ctx, "a", domain.WithVersion(2))
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RackTestSuite) TestUpdateByQuery() {
	created := s.create(M{"firstName": "Martin", "lastName": "Gonzalez"})

	updated, err := s.rack.Update(ctx,
		M{"lastName": M{"$eq": "Gonzalez"}},
		M{"firstName": "Olivia"},
	)
	s.NoError(err)
	s.Require().Len(updated, 1)
	s.Equal(created.ID(), updated[0].ID())
	s.Equal("Olivia", updated[0].Get("firstName"))
	s.Equal("Gonzalez", updated[0].Get("lastName"))
	s.Equal(int64(2), updated[0].Get("_v"))
	s.Equal("Olivia Gonzalez", updated[0].Get("fullName"))

	events := s.named(domain.EventUpdate)
	s.Require().Len(events, 1)
	ev := events[0].Payload.(domain.UpdateEvent)
	s.Equal("Martin", ev.OldEntry.Get("firstName"))
	s.Equal(M{"firstName": "Olivia"}, ev.NewEntry)
	s.Equal(updated[0], ev.Entry)
}

// A patch that changes nothing keeps the version and emits nothing.
func (s *RackTestSuite) TestUpdateNoop() {
	s.create(M{"_id": "a", "firstName": "Ana", "n": 1})

	updated, err := s.rack.Update(ctx, "a", M{"firstName": "Ana", "n": int64(1)})
	s.NoError(err)
	s.Require().Len(updated, 1)
	s.Equal(int64(1), updated[0].Get("_v"))
	s.Empty(s.named(domain.EventUpdate))
}

func (s *RackTestSuite) TestUpdateVersion() {
	s.create(M{"_id": "a", "firstName": "Ana"})

	_, err := s.rack.Update(ctx, "a", M{"firstName": "B", "_v": 5})
	s.ErrorIs(err, domain.ErrEntryVersionMismatch)

	updated, err := s.rack.Update(ctx, "a", M{"firstName": "B", "_v": 1})
	s.NoError(err)
	s.Equal(int64(2), updated[0].Get("_v"))

	_, err = s.rack.Update(ctx, "a", M{"_v": "x"})
	s.ErrorIs(err, domain.ErrInvalidVersion)
}

func (s *RackTestSuite) TestUpdateID() {
	s.create(M{"_id": "a", "firstName": "Ana"})

	_, err := s.rack.Update(ctx, "a", M{"_id": "b"})
	s.ErrorIs(err, domain.ErrCannotModifyID)

	_, err = s.rack.Update(ctx, "a", M{"_id": "a", "firstName": "B"})
	s.NoError(err)
}

func (s *RackTestSuite) TestUpdateNested() {
	s.create(M{"_id": "a", "firstName": "Ana"})

	updated, err := s.rack.Update(ctx, "a", M{"address.city": "Lima"})
	s.NoError(err)
	s.Equal(M{"city": "Lima"}, updated[0].Get("address"))

	_, err = s.rack.Update(ctx, "a", M{"address.city": 3})
	s.ErrorAs(err, new(domain.ErrValidation))
}

func (s *RackTestSuite) TestUpdateMissing() {
	updated, err := s.rack.Update(ctx, "nobody", M{"firstName": "X"})
	s.NoError(err)
	s.Empty(updated)
}

// An entry deleted between the lookup and the write is skipped.
func (s *RackTestSuite) TestUpdateDeletedMeanwhile() {
	r, err := NewRack("note", schema.NewSchema(map[string]domain.Field{
		"name": {Type: domain.TypeString},
	}))
	s.Require().NoError(err)
	s.Require().NoError(lock.NewPlugin()(ctx, domain.PluginParams{Rack: r}))

	var once sync.Once
	r.Hook(domain.Before, domain.OpUpdate, func(ctx context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
		var err error
		once.Do(func() { _, err = r.DeleteByID(ctx, p.ID) })
		return err
	})
	s.Require().NoError(memstore.NewPlugin()(ctx, domain.PluginParams{Rack: r}))

	var updates int
	r.On(func(_ context.Context, e domain.Event) {
		if e.Name == domain.EventUpdate {
			updates++
		}
	})

	_, err = r.Create(ctx, M{"_id": "a", "name": "x"})
	s.Require().NoError(err)

	updated, err := r.Update(ctx, "a", M{"name": "y"})
	s.NoError(err)
	s.Empty(updated)
	s.Zero(updates)

	_, err = r.FindOneByID(ctx, "a")
	s.ErrorIs(err, domain.ErrNotFound)

	// the lock was released by the rollback
	_, err = r.Create(ctx, M{"_id": "a", "name": "z"})
	s.NoError(err)
	updated, err = r.Update(ctx, "a", M{"name": "w"})
	s.NoError(err)
	s.Len(updated, 1)
}

// NaN is not a number and never reaches stored entries or comparisons.
func (s *RackTestSuite) TestNaN() {
	_, err := s.rack.Create(ctx, M{"firstName": "A", "n": math.NaN()})
	var vErr domain.ErrValidation
	s.Require().ErrorAs(err, &vErr)
	s.Equal("n", vErr.Path)

	s.create(M{"_id": "a", "firstName": "A", "n": 1})

	docs, err := s.rack.List(ctx, M{"n": M{"$eq": math.NaN()}})
	s.NoError(err)
	s.Empty(docs)

	docs, err = s.rack.List(ctx, M{"n": M{"$lt": math.NaN()}})
	s.NoError(err)
	s.Empty(docs)

	_, err = s.rack.Update(ctx, "a", M{"n": math.NaN()})
	s.ErrorAs(err, new(domain.ErrValidation))
}

func (s *RackTestSuite) TestUpdateUnique() {
	s.create(M{"_id": "a", "firstName": "A", "email": "a@x.io"})
	s.create(M{"_id": "b", "firstName": "B", "email": "b@x.io"})

	_, err := s.rack.Update(ctx, "b", M{"email": "a@x.io"})
	s.ErrorAs(err, new(domain.ErrUniqueConstraint))

	stored, err := s.rack.FindOneByID(ctx, "b")
	s.NoError(err)
	s.Equal("b@x.io", stored.Get("email"))
	s.Equal(int64(1), stored.Get("_v"))
}

// Concurrent writers are serialized and none of them is lost.
func (s *RackTestSuite) TestUpdateConcurrent() {
	s.create(M{"_id": "a", "firstName": "Ana", "n": -1})

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for n := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.rack.Update(ctx, "a", M{"n": n})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	stored, err := s.rack.FindOneByID(ctx, "a")
	s.NoError(err)
	s.Equal(int64(1+writers), stored.Get("_v"))
	s.Equal("Ana", stored.Get("firstName"))
	s.Len(s.named(domain.EventUpdate), writers)
}

func (s *RackTestSuite) TestList() {
	for _, name := range []string{"Ruth", "Olivia", "Martin", "Ana"} {
		s.create(M{"firstName": name, "lastName": "X"})
	}

	docs, err := s.rack.List(ctx, M{"firstName": M{"$ne": "Ana"}},
		domain.WithSort(domain.Sort{{Key: "firstName", Order: -1}}),
		domain.WithSkip(1),
		domain.WithLimit(5),
	)
	s.NoError(err)
	s.Require().Len(docs, 2)
	s.Equal("Olivia", docs[0].Get("firstName"))
	s.Equal("Martin", docs[1].Get("firstName"))
	s.Equal("Olivia X", docs[0].Get("fullName"))
	s.Len(s.named(domain.EventList), 1)

	raw, err := s.rack.List(ctx, nil, domain.WithRaw(true))
	s.NoError(err)
	s.Len(raw, 4)
	s.False(raw[0].Has("fullName"))
	s.Len(s.named(domain.EventList), 1)

	none, err := s.rack.List(ctx, M{"firstName": "Nobody"})
	s.NoError(err)
	s.NotNil(none)
	s.Empty(none)

	_, err = s.rack.List(ctx, M{"firstName": M{"$nope": 1}})
	s.ErrorAs(err, new(domain.ErrUnknownOperator))
}

func (s *RackTestSuite) TestDelete() {
	s.create(M{"_id": "a", "firstName": "A", "lastName": "X"})
	s.create(M{"_id": "b", "firstName": "B", "lastName": "X"})
	s.create(M{"_id": "c", "firstName": "C", "lastName": "Y"})

	removed, err := s.rack.Delete(ctx, M{"lastName": "X"})
	s.NoError(err)
	s.Len(removed, 2)
	s.Len(s.named(domain.EventDelete), 2)

	left, err := s.rack.List(ctx, nil, domain.WithRaw(true))
	s.NoError(err)
	s.Require().Len(left, 1)
	s.Equal("c", left[0].ID())

	removed, err = s.rack.Delete(ctx, "c")
	s.NoError(err)
	s.Len(removed, 1)
}

func (s *RackTestSuite) TestDeleteByID() {
	s.create(M{"_id": "a", "firstName": "A"})

	gone, err := s.rack.DeleteByID(ctx, "a")
	s.NoError(err)
	s.Equal("a", gone.ID())
	s.Empty(s.named(domain.EventDelete))

	_, err = s.rack.DeleteByID(ctx, "a")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RackTestSuite) TestApply() {
	s.create(M{"_id": "a", "firstName": "Ana", "lastName": "Lee"})

	res, err := s.rack.Apply(ctx, domain.ApplyRequest{ID: "a", Method: "rename", Payload: "Bia"})
	s.Require().NoError(err)
	s.Equal("Ana", res.MethodResult)
	s.Equal("Bia", res.EntryResult.Get("firstName"))
	s.Equal(int64(2), res.EntryResult.Get("_v"))
	s.Equal([]domain.TrappedEvent{{Event: "renamed", Payload: []any{"Ana", "Bia"}}}, res.EventsDispatched)

	events := s.named(domain.EventMethod)
	s.Require().Len(events, 1)
	ev := events[0].Payload.(domain.MethodEvent)
	s.Equal("renamed", ev.Event)
	s.Equal(res.EntryResult, ev.Entry)
	s.Len(s.named(domain.EventUpdate), 1)
}

func (s *RackTestSuite) TestApplyPath() {
	s.create(M{"_id": "a", "firstName": "Ana"})

	res, err := s.rack.Apply(ctx, domain.ApplyRequest{ID: "a", Path: "address", Method: "move", Payload: "Lima"})
	s.Require().NoError(err)
	s.Equal(M{"city": "Lima"}, res.EntryResult.Get("address"))
}

func (s *RackTestSuite) TestApplyErrors() {
	s.create(M{"_id": "a", "firstName": "Ana"})

	_, err := s.rack.Apply(ctx, domain.ApplyRequest{ID: "a", Method: "nope"})
	s.ErrorAs(err, new(domain.ErrMethod))

	_, err = s.rack.Apply(ctx, domain.ApplyRequest{ID: "a", Method: "fail"})
	s.ErrorIs(err, errBroken)
	s.ErrorAs(err, new(domain.ErrMethod))

	_, err = s.rack.Apply(ctx, domain.ApplyRequest{ID: "a", Method: "shout"})
	s.ErrorAs(err, new(domain.ErrEvent))

	_, err = s.rack.Apply(ctx, domain.ApplyRequest{ID: "b", Method: "rename", Payload: "X"})
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.rack.Apply(ctx, domain.ApplyRequest{ID: "a", Version: 3, Method: "rename", Payload: "X"})
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.rack.Apply(ctx, domain.ApplyRequest{
		ID:       "a",
		Method:   "rename",
		Payload:  "X",
		Validate: func(domain.Document) error { return errBroken },
	})
	s.ErrorIs(err, errBroken)

	s.Empty(s.named(domain.EventMethod))

	// every failure released the entry lock
	res, err := s.rack.Apply(ctx, domain.ApplyRequest{ID: "a", Method: "rename", Payload: "Bia"})
	s.NoError(err)
	s.Equal(int64(2), res.EntryResult.Get("_v"))
}

func (s *RackTestSuite) TestApplyHookSeesResult() {
	s.create(M{"_id": "a", "firstName": "Ana"})

	var seen *domain.Payload
	s.rack.Hook(domain.After, domain.OpApply, func(_ context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
		seen = p
		return nil
	})
	_, err := s.rack.Apply(ctx, domain.ApplyRequest{ID: "a", Method: "rename", Payload: "Bia"})
	s.NoError(err)
	s.Require().NotNil(seen)
	s.Equal("Ana", seen.MethodResult)
	s.Equal("Ana", seen.OldEntry.Get("firstName"))
	s.Equal("Bia", seen.EntryResult.Get("firstName"))
	s.Len(seen.EventsTrapped, 1)
	s.NoError(seen.Err)
}

func (s *RackTestSuite) TestCall() {
	s.create(M{"firstName": "A"})
	s.create(M{"firstName": "B"})

	out, err := s.rack.Call(ctx, "count", nil)
	s.NoError(err)
	s.Equal(M{"total": 2}, out)

	out, err = s.rack.Call(ctx, "greet", M{"name": "Ana"})
	s.NoError(err)
	s.Equal("hi Ana", out)

	var mErr domain.ErrRackMethod
	_, err = s.rack.Call(ctx, "greet", M{})
	s.Require().ErrorAs(err, &mErr)
	s.Equal("person", mErr.Rack)
	s.ErrorAs(err, new(domain.ErrValidation))

	_, err = s.rack.Call(ctx, "broken", nil)
	s.ErrorIs(err, errBroken)

	_, err = s.rack.Call(ctx, "missing", nil)
	s.ErrorAs(err, new(domain.ErrRackMethod))
}

func (s *RackTestSuite) TestDispatch() {
	s.NoError(s.rack.Dispatch(ctx, "ping", M{"msg": "hello"}))
	events := s.named("ping")
	s.Require().Len(events, 1)
	s.Equal(M{"msg": "hello"}, events[0].Payload)

	s.NoError(s.rack.Dispatch(ctx, "tick", 3))
	s.Len(s.named("tick"), 1)

	s.ErrorAs(s.rack.Dispatch(ctx, "ping", M{}), new(domain.ErrEvent))
	s.ErrorAs(s.rack.Dispatch(ctx, "pong", nil), new(domain.ErrEvent))
	s.Len(s.named("ping"), 1)
}

func (s *RackTestSuite) TestOff() {
	var count int
	off := s.rack.On(func(context.Context, domain.Event) { count++ })
	s.create(M{"firstName": "A"})
	off()
	s.create(M{"firstName": "B"})
	s.Equal(1, count)
}

func TestRackTestSuite(t *testing.T) {
	suite.Run(t, new(RackTestSuite))
}
