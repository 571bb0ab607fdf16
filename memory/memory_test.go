// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/datastore/datastoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic datastore tests against the memory backend.
type Suite struct {
	datastoretest.Suite
}

// SetupSuite creates the backend.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	s.Datastore = New()
}

// TestDatastore runs the Datastore generic tests.
func TestDatastore(t *testing.T) {
	suite.Run(t, &Suite{})
}

// TestUnsupportedSQL checks that statements other than the MAX
// aggregate are rejected.
func TestUnsupportedSQL(t *testing.T) {
	ds := New()
	_, err := datastore.Call(context.Background(), ds, datastore.ActionSearchSQL,
		datastore.Dict{datastore.SQLParam: `SELECT * FROM "x"`})
	if assert.Error(t, err) {
		assert.Equal(t, datastore.KindSearchQuery, datastore.KindOf(err))
	}
}

// TestCanceled checks that a canceled context stops an action before
// it runs.
func TestCanceled(t *testing.T) {
	ds := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := datastore.Call(ctx, ds, datastore.ActionCreate, datastore.Dict{
		datastore.ResourceIDParam: "x",
		datastore.FieldsParam:     []interface{}{},
	})
	assert.Equal(t, context.Canceled, err)
}

// TestConcurrentUpserts checks that concurrent writers each get
// their records stored.
func TestConcurrentUpserts(t *testing.T) {
	ds := New()
	ctx := context.Background()
	_, err := datastore.Call(ctx, ds, datastore.ActionCreate, datastore.Dict{
		datastore.ResourceIDParam: "counts",
		datastore.FieldsParam: []interface{}{
			map[string]interface{}{"id": "pk", "type": "int"},
		},
		datastore.PrimaryKeyParam: []interface{}{"pk"},
	})
	if !assert.NoError(t, err) {
		return
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := datastore.Call(ctx, ds, datastore.ActionUpsert, datastore.Dict{
				datastore.ResourceIDParam: "counts",
				datastore.RecordsParam: []interface{}{
					map[string]interface{}{"pk": int64(i)},
				},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	result, err := datastore.Call(ctx, ds, datastore.ActionSearch, datastore.Dict{
		datastore.ResourceIDParam: "counts",
	})
	if assert.NoError(t, err) {
		assert.EqualValues(t, 16, result[datastore.TotalParam])
	}
}

// TestResultsAreCopies checks that mutating a search result does not
// change stored data.
func TestResultsAreCopies(t *testing.T) {
	ds := New()
	ctx := context.Background()
	_, err := datastore.Call(ctx, ds, datastore.ActionCreate, datastore.Dict{
		datastore.ResourceIDParam: "r",
		datastore.FieldsParam: []interface{}{
			map[string]interface{}{"id": "name"},
		},
		datastore.RecordsParam: []interface{}{
			map[string]interface{}{"name": "x"},
		},
	})
	if !assert.NoError(t, err) {
		return
	}
	search := func() datastore.Dict {
		result, err := datastore.Call(ctx, ds, datastore.ActionSearch, datastore.Dict{
			datastore.ResourceIDParam: "r",
		})
		assert.NoError(t, err)
		return result
	}
	datastore.StripBookkeeping(search())
	records := datastore.AsRecords(search()[datastore.RecordsParam])
	if assert.Len(t, records, 1) {
		assert.Equal(t, int64(1), records[0][datastore.BookkeepingField])
	}
}
