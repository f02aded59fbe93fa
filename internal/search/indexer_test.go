package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/common/logger"
	"beacon/internal/models"
)

type recorded struct {
	method string
	path   string
	body   []byte
}

func newTestIndexer(t *testing.T, status int, respBody string) (*Indexer, *[]recorded) {
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, body: b})
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndexer(client, "beacon-opportunities", logger.NewTestLogger(t)), &calls
}

func TestIndexer_Index(t *testing.T) {
	idx, calls := newTestIndexer(t, http.StatusCreated, `{"result":"created"}`)
	o := &models.Opportunity{
		ID:            7,
		Title:         "Bridge inspection",
		CategoryIDs:   []int64{1},
		SubmissionEnd: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, idx.Index(context.Background(), o, []models.Category{{ID: 1, Name: "Engineering"}}))
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPut, call.method)
	assert.Equal(t, "/beacon-opportunities/_doc/7", call.path)

	var doc Document
	require.NoError(t, json.Unmarshal(call.body, &doc))
	assert.Equal(t, "Bridge inspection", doc.Title)
	assert.Equal(t, []string{"Engineering"}, doc.Categories)
}

func TestIndexer_IndexError(t *testing.T) {
	idx, _ := newTestIndexer(t, http.StatusBadRequest, `{"error":"mapper_parsing_exception"}`)
	err := idx.Index(context.Background(), &models.Opportunity{ID: 1}, nil)
	assert.Error(t, err)
}

func TestIndexer_RemoveMissingIsNotAnError(t *testing.T) {
	idx, calls := newTestIndexer(t, http.StatusNotFound, `{"result":"not_found"}`)
	require.NoError(t, idx.Remove(context.Background(), 9))
	assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	assert.Equal(t, "/beacon-opportunities/_doc/9", (*calls)[0].path)
}

func TestIndexer_Search(t *testing.T) {
	idx, calls := newTestIndexer(t, http.StatusOK, `{"hits":{"hits":[{"_source":{"id":3,"title":"Snow removal"}},{"_source":{"id":5,"title":"Snow fencing"}}]}}`)

	docs, err := idx.Search(context.Background(), "snow", 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(3), docs[0].ID)
	assert.Equal(t, "/beacon-opportunities/_search", (*calls)[0].path)
	assert.Contains(t, string((*calls)[0].body), `"multi_match"`)
}
