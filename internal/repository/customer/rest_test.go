package customer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
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

func TestRESTListMapsSnakeCaseRows(t *testing.T) {
	repo := restRepoFor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/customers", r.URL.Path)
		assert.Equal(t, restFullSelect, r.URL.Query().Get("select"))
		assert.Equal(t, "eq.owner-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "name.asc.nullslast", r.URL.Query().Get("order"))
		_, _ = w.Write([]byte(`[
			{"id":"c1","user_id":"owner-1","name":"Alice","phone":"999","address":null,"product":"Cow Milk","rate":65.5,"plan":"2L daily","plan_type":null,"created_at":"2024-01-01T00:00:00+00:00","updated_at":"2024-01-02T00:00:00+00:00"}
		]`))
	})

	got, err := repo.List(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "Alice", c.Name)
	assert.Equal(t, "owner-1", c.UserID)
	assert.Equal(t, domain.ProductCow, c.Product)
	assert.True(t, c.Rate.Equal(decimal.RequireFromString("65.5")))
	assert.Equal(t, domain.DefaultPlanType, c.PlanType)
	assert.Equal(t, "", c.Address)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), c.UpdatedAt)
}

func TestRESTListFallsBackWhenProductColumnMissing(t *testing.T) {
	var selects []string
	repo := restRepoFor(t, func(w http.ResponseWriter, r *http.Request) {
		sel := r.URL.Query().Get("select")
		selects = append(selects, sel)
		if strings.Contains(sel, "product") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"42703","message":"column customers.product does not exist"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":"c1","user_id":"o","name":"Alice","phone":"1"}]`))
	})

	got, err := repo.List(context.Background(), "o")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ProductBuffalo, got[0].Product)
	assert.True(t, got[0].Rate.IsZero())
	assert.Equal(t, []string{restFullSelect, restMinimalSelect}, selects)
}

func TestRESTListPropagatesServerErrors(t *testing.T) {
	repo := restRepoFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"XX000","message":"boom"}`))
	})

	_, err := repo.List(context.Background(), "")
	var apiErr *postgrest.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "XX000", apiErr.Code)
}

func TestRESTFindByNamePhoneTrimsInput(t *testing.T) {
	repo := restRepoFor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.Alice", r.URL.Query().Get("name"))
		assert.Equal(t, "eq.9876543210", r.URL.Query().Get("phone"))
		_, _ = w.Write([]byte(`{"id":"c1","user_id":"o","name":"Alice","phone":"9876543210","product":"Buffalo Milk","rate":"70"}`))
	})

	c, err := repo.FindByNamePhone(context.Background(), "  Alice ", " 9876543210")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.True(t, c.Rate.Equal(decimal.NewFromInt(70)))
}

func TestRESTFindByNamePhoneNotFound(t *testing.T) {
	repo := restRepoFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"code":"PGRST116","message":"0 rows"}`))
	})

	_, err := repo.FindByNamePhone(context.Background(), "Ghost", "0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
