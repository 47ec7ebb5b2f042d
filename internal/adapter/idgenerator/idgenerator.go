// Package idgenerator contains the default [domain.IDGenerator]
// implementations.
package idgenerator

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/timegetter"
)

// Supported id types.
const (
	TypeObjectID = "objectid"
	TypeUUID     = "uuid"
)

// ObjectID generates 24 character hexadecimal ids made of a timestamp in
// seconds, a random process value and an increasing counter.
type ObjectID struct {
	reader  io.Reader
	tg      domain.TimeGetter
	process [5]byte
	counter atomic.Uint32
	once    sync.Once
	seedErr error
}

// NewObjectID returns an ObjectID generator.
func NewObjectID(opts ...Option) domain.IDGenerator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return newObjectID(o)
}

func newObjectID(o options) *ObjectID {
	g := &ObjectID{reader: o.reader, tg: o.timeGetter}
	if g.reader == nil {
		g.reader = rand.Reader
	}
	if g.tg == nil {
		g.tg = timegetter.NewTimeGetter()
	}
	return g
}

func (g *ObjectID) seed() error {
	g.once.Do(func() {
		var buf [8]byte
		if _, err := io.ReadFull(g.reader, buf[:]); err != nil {
			g.seedErr = fmt.Errorf("reading random bytes: %w", err)
			return
		}
		copy(g.process[:], buf[:5])
		g.counter.Store(uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7]))
	})
	return g.seedErr
}

// GenerateID implements [domain.IDGenerator].
func (g *ObjectID) GenerateID() (string, error) {
	if err := g.seed(); err != nil {
		return "", err
	}
	var id [12]byte
	binary.BigEndian.PutUint32(id[:4], uint32(g.tg.GetTime().Unix()))
	copy(id[4:9], g.process[:])
	c := g.counter.Add(1)
	id[9], id[10], id[11] = byte(c>>16), byte(c>>8), byte(c)
	return hex.EncodeToString(id[:]), nil
}

// UUID generates version 7 UUIDs.
type UUID struct {
	reader io.Reader
}

// NewUUID returns a UUID generator.
func NewUUID(opts ...Option) domain.IDGenerator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &UUID{reader: o.reader}
}

// GenerateID implements [domain.IDGenerator].
func (g *UUID) GenerateID() (string, error) {
	var (
		id  uuid.UUID
		err error
	)
	if g.reader != nil {
		id, err = uuid.NewV7FromReader(g.reader)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		return "", fmt.Errorf("generating uuid: %w", err)
	}
	return id.String(), nil
}

// New returns the generator for the given id type. An empty type means
// [TypeObjectID].
func New(idType string, opts ...Option) (domain.IDGenerator, error) {
	switch idType {
	case "", TypeObjectID:
		return NewObjectID(opts...), nil
	case TypeUUID:
		return NewUUID(opts...), nil
	}
	return nil, fmt.Errorf("unknown id type %q", idType)
}
