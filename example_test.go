package rackdb_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb"
)

func ExampleOpen() {
	// Open creates a store with the default plugins: rack locks,
	// reference checks, unique keys and in-memory storage.
	store, _ := rackdb.Open(
		// How long an operation waits for another one on the same rack.
		rackdb.WithLockTimeout(3*time.Second),
		// Generated _id values can be "objectid" or "uuid".
		rackdb.WithIDType("uuid"),
		// Logger given to racks and plugins. Discards by default.
		rackdb.WithLogger(nil),
	)
	defer store.Shutdown(context.Background())

	fmt.Println(store.ListRacks())
	// Output: []
}

func ExampleStore_Define() {
	ctx := context.Background()
	store, _ := rackdb.Open()
	defer store.Shutdown(ctx)

	people, _ := store.Define(ctx, "person", map[string]rackdb.Field{
		"firstName": {Type: rackdb.TypeString, Required: true},
		"lastName":  {Type: rackdb.TypeString},
	}, rackdb.WithVirtuals(map[string]rackdb.Virtual{
		"fullName": {Get: func(d rackdb.Document) any {
			return fmt.Sprintf("%v %v", d.Get("firstName"), d.Get("lastName"))
		}},
	}))

	created, _ := people.Create(ctx, rackdb.M{"_id": "p1", "firstName": "Martin", "lastName": "Gonzalez"})
	fmt.Println(created.Get("fullName"), created.Get("_v"))

	updated, _ := people.Update(ctx, rackdb.M{"lastName": "Gonzalez"}, rackdb.M{"firstName": "Olivia"})
	fmt.Println(updated[0].Get("fullName"), updated[0].Get("_v"))

	_, err := people.Create(ctx, rackdb.M{"lastName": "Nobody"})
	var vErr rackdb.ErrValidation
	fmt.Println(errors.As(err, &vErr))
	// Output:
	// Martin Gonzalez 1
	// Olivia Gonzalez 2
	// true
}

func ExampleRack_Apply() {
	ctx := context.Background()
	store, _ := rackdb.Open()
	defer store.Shutdown(ctx)

	counters, _ := store.Define(ctx, "counter", map[string]rackdb.Field{
		"n": {Type: rackdb.TypeNumber, Default: 0.0},
	}, rackdb.WithMethods("", map[string]rackdb.Method{
		"add": {
			Events: []string{"added"},
			Handler: func(_ context.Context, m rackdb.Model, payload any) (any, error) {
				n, _ := m.Get("n")
				sum := n.(float64) + payload.(float64)
				if err := m.Set("n", sum); err != nil {
					return nil, err
				}
				return sum, m.Emit("added", payload)
			},
		},
	}))

	counters.On(func(_ context.Context, e rackdb.Event) {
		if e.Name == "method" {
			fmt.Println("event:", e.Name)
		}
	})

	_, _ = counters.Create(ctx, rackdb.M{"_id": "c1"})
	res, _ := counters.Apply(ctx, rackdb.ApplyRequest{ID: "c1", Method: "add", Payload: 2.5})
	fmt.Println(res.MethodResult, res.EntryResult.Get("_v"), res.EventsDispatched[0].Event)
	// Output:
	// event: method
	// 2.5 2 added
}

func ExampleDecode() {
	type person struct {
		ID        string `rackdb:"_id"`
		Version   int64  `rackdb:"_v"`
		FirstName string `rackdb:"firstName"`
	}

	var p person
	_ = rackdb.Decode(rackdb.M{"_id": "p1", "_v": int64(3), "firstName": "Ruth"}, &p)
	fmt.Printf("%s %d %s\n", p.ID, p.Version, p.FirstName)
	// Output: p1 3 Ruth
}
