package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerankClientScoreBatchReturnsScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"scores":[0.9,0.1]}`))
	}))
	defer server.Close()

	client := NewRerankClient(server.URL)
	scores, err := client.ScoreBatch(context.Background(), "query", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, scores)
}

func TestRerankClientScoreBatchErrorsOnCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scores":[0.9]}`))
	}))
	defer server.Close()

	client := NewRerankClient(server.URL)
	_, err := client.ScoreBatch(context.Background(), "query", []string{"a", "b"})
	assert.Error(t, err)
}
