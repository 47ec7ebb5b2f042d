package emitter

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

var ctx = context.Background()

type EmitterTestSuite struct {
	suite.Suite
	e *Emitter
}

func (s *EmitterTestSuite) SetupTest() {
	s.e = NewEmitter().(*Emitter)
}

func (s *EmitterTestSuite) TestOrder() {
	var got []string
	s.e.On(func(_ context.Context, ev domain.Event) { got = append(got, "a:"+ev.Name) })
	s.e.On(func(_ context.Context, ev domain.Event) { got = append(got, "b:"+ev.Name) })

	s.e.Emit(ctx, domain.Event{Name: "create"})
	s.Equal([]string{"a:create", "b:create"}, got)
}

func (s *EmitterTestSuite) TestOff() {
	n := 0
	off := s.e.On(func(context.Context, domain.Event) { n++ })
	s.e.On(func(context.Context, domain.Event) {})
	s.e.Emit(ctx, domain.Event{})
	off()
	off()
	s.e.Emit(ctx, domain.Event{})
	s.Equal(1, n)
	s.Equal(1, s.e.Len())

	s.e.Clear()
	s.Zero(s.e.Len())
}

// A listener that panics is logged and the rest still run.
func (s *EmitterTestSuite) TestPanic() {
	var buf bytes.Buffer
	e := NewEmitter(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	called := false
	e.On(func(context.Context, domain.Event) { panic("boom") })
	e.On(func(context.Context, domain.Event) { called = true })

	s.NotPanics(func() { e.Emit(ctx, domain.Event{Name: "update", Rack: "user"}) })
	s.True(called)
	s.Contains(buf.String(), "listener panicked")
	s.Contains(buf.String(), "rack=user")
}

// Listeners may subscribe others while an event is delivered.
func (s *EmitterTestSuite) TestSubscribeWhileEmitting() {
	s.e.On(func(context.Context, domain.Event) {
		s.e.On(func(context.Context, domain.Event) {})
	})
	s.NotPanics(func() { s.e.Emit(ctx, domain.Event{}) })
	s.Equal(2, s.e.Len())
}

func TestEmitterTestSuite(t *testing.T) {
	suite.Run(t, new(EmitterTestSuite))
}
