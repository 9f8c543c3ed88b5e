package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/postgrest"
)

func restRepoFor(t *testing.T, h http.HandlerFunc) Repository {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := postgrest.New(srv.URL, "key", 5*time.Second, nil)
	require.NoError(t, err)
	return NewREST(client, nil)
}

func TestRESTListScopesByOwner(t *testing.T) {
	repo := restRepoFor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/delivery_agents", r.URL.Path)
		assert.Equal(t, "eq.owner-1", r.URL.Query().Get("owner_id"))
		assert.Equal(t, restSelect, r.URL.Query().Get("select"))
		_, _ = w.Write([]byte(`[
			{"id":"a1","owner_id":"owner-1","name":"Bob","phone":"111","area":"North","login_id":null},
			{"id":"a2","owner_id":"owner-1","name":"Ravi","phone":"222","area":null,"login_id":"ravi01"}
		]`))
	})

	got, err := repo.List(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "North", got[0].Area)
	assert.Equal(t, "", got[0].LoginID)
	assert.Equal(t, "ravi01", got[1].LoginID)
}

func TestRESTListWithoutOwnerDoesNotFilter(t *testing.T) {
	repo := restRepoFor(t, func(w http.ResponseWriter, r *http.Request) {
		_, filtered := r.URL.Query()["owner_id"]
		assert.False(t, filtered)
		_, _ = w.Write([]byte(`[]`))
	})

	got, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRESTFindByNamePhoneNotFound(t *testing.T) {
	repo := restRepoFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"code":"PGRST116","message":"0 rows"}`))
	})

	_, err := repo.FindByNamePhone(context.Background(), "Bob", "000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
