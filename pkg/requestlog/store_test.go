package requestlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	s := New(10)
	e := &Entry{Service: "svc", Method: "GET", Path: "/x", Status: 200}
	s.Append(e)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.At.IsZero())
	assert.Equal(t, 1, s.Count())
}

func TestQueryFiltersAndOrdersNewestFirst(t *testing.T) {
	s := New(10)
	s.Append(&Entry{Service: "svc", Method: "GET", Path: "/a", Status: 200})
	s.Append(&Entry{Service: "svc", Method: "GET", Path: "/b", Status: 404})

	res := s.Query(Filter{Status: 404})
	require.Len(t, res, 1)
	assert.Equal(t, "/b", res[0].Path)

	all := s.Query(Filter{})
	require.Len(t, all, 2)
	assert.Equal(t, "/b", all[0].Path, "newest entry first")
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := New(2)
	s.Append(&Entry{Path: "/1"})
	s.Append(&Entry{Path: "/2"})
	s.Append(&Entry{Path: "/3"})

	all := s.Query(Filter{MaxResults: 10})
	require.Len(t, all, 2)
	assert.Equal(t, "/3", all[0].Path)
	assert.Equal(t, "/2", all[1].Path)
}

func TestSubscribeReceivesAppends(t *testing.T) {
	s := New(10)
	sub, unsub := s.Subscribe()
	defer unsub()

	s.Append(&Entry{Path: "/watched"})
	e := <-sub
	assert.Equal(t, "/watched", e.Path)
}

func TestExportCSVAndJSON(t *testing.T) {
	s := New(10)
	s.Append(&Entry{Service: "svc", Method: "GET", Path: "/x", Status: 200})

	csvOut, err := s.Export(Filter{}, ExportCSV)
	require.NoError(t, err)
	assert.Contains(t, string(csvOut), "/x")

	jsonOut, err := s.Export(Filter{}, ExportJSON)
	require.NoError(t, err)
	assert.Contains(t, string(jsonOut), `"path": "/x"`)
}

func TestClear(t *testing.T) {
	s := New(10)
	s.Append(&Entry{Path: "/x"})
	s.Clear()
	assert.Equal(t, 0, s.Count())
}
