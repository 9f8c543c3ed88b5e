package assignment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/postgrest"
)

func restRepoFor(t *testing.T, now time.Time, h http.HandlerFunc) *restRepo {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := postgrest.New(srv.URL, "key", 5*time.Second, nil)
	require.NoError(t, err)
	repo := NewREST(client, nil).(*restRepo)
	repo.now = func() time.Time { return now }
	return repo
}

func TestRESTListFullSchema(t *testing.T) {
	repo := restRepoFor(t, time.Now(), func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, restFullSelect, q.Get("select"))
		assert.Equal(t, "eq.owner-1", q.Get("owner_id"))
		assert.Equal(t, "gte.2024-01-01", q.Get("date"))
		assert.Equal(t, "date.asc.nullslast,shift.asc.nullslast", q.Get("order"))
		_, _ = w.Write([]byte(`[
			{"id":"as1","owner_id":"owner-1","customer_id":"c1","delivery_agent_id":"a1","date":"2024-01-05","shift":"morning","liters":2.5,"delivered":true,"assigned_at":"2024-01-04T10:00:00+00:00","unassigned_at":null}
		]`))
	})

	got, err := repo.List(context.Background(), domain.AssignmentFilter{OwnerID: "owner-1", From: "2024-01-01"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-01-05", got[0].Date)
}

func TestRESTListDecodesRows(t *testing.T) {
	repo := restRepoFor(t, time.Now(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"as1","owner_id":"owner-1","customer_id":"c1","delivery_agent_id":"a1","date":"2024-01-05","shift":"evening","liters":2.5,"delivered":true,"assigned_at":"2024-01-04T10:00:00+00:00","unassigned_at":"2024-01-06T10:00:00+00:00"},
			{"id":"as2","owner_id":"owner-1","customer_id":"c2","delivery_agent_id":"a1","date":"2024-01-05","shift":"morning","liters":null,"delivered":null,"assigned_at":"2024-01-04T10:00:00+00:00","unassigned_at":null}
		]`))
	})

	got, err := repo.List(context.Background(), domain.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ShiftEvening, got[0].Shift)
	assert.Equal(t, 2.5, got[0].Liters)
	assert.True(t, got[0].Delivered)
	require.NotNil(t, got[0].UnassignedAt)
	assert.Equal(t, 0.0, got[1].Liters)
	assert.False(t, got[1].Delivered)
	assert.Nil(t, got[1].UnassignedAt)
}

func TestRESTListFallsBackToMinimalColumns(t *testing.T) {
	now := time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC)
	var calls []string
	repo := restRepoFor(t, now, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		calls = append(calls, q.Get("select"))
		if strings.Contains(q.Get("select"), "liters") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"42703","message":"column delivery_assignments.date does not exist"}`))
			return
		}
		_, hasDate := q["date"]
		assert.False(t, hasDate)
		assert.Equal(t, "eq.a1", q.Get("delivery_agent_id"))
		assert.Equal(t, "assigned_at.desc.nullslast", q.Get("order"))
		_, _ = w.Write([]byte(`[{"id":"as1","owner_id":"o","customer_id":"c1","delivery_agent_id":"a1","assigned_at":"2024-03-01T00:00:00+00:00"}]`))
	})

	got, err := repo.List(context.Background(), domain.AssignmentFilter{OwnerID: "o", AgentID: "a1", From: "2024-03-01"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-03-09", got[0].Date)
	assert.Equal(t, domain.ShiftMorning, got[0].Shift)
	assert.Equal(t, 0.0, got[0].Liters)
	assert.False(t, got[0].Delivered)
	assert.Equal(t, []string{restFullSelect, restMinimalSelect}, calls)
}

func TestRESTInsertSendsSnakeCase(t *testing.T) {
	repo := restRepoFor(t, time.Now(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c1", body["customer_id"])
		assert.Equal(t, "a1", body["delivery_agent_id"])
		assert.Equal(t, "morning", body["shift"])
		assert.Equal(t, 2.0, body["liters"])
		assert.Equal(t, false, body["delivered"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"as9","owner_id":"o","customer_id":"c1","delivery_agent_id":"a1","date":"2024-01-05","shift":"morning","liters":2,"delivered":false,"assigned_at":"2024-01-05T01:02:03+00:00"}`))
	})

	created, err := repo.Insert(context.Background(), domain.NewAssignment{
		OwnerID: "o", CustomerID: "c1", DeliveryAgentID: "a1", Date: "2024-01-05", Shift: domain.ShiftMorning, Liters: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "as9", created.ID)
	assert.Equal(t, time.Date(2024, 1, 5, 1, 2, 3, 0, time.UTC), created.AssignedAt)
}

func TestRESTUpdateSendsOnlyPatchedFields(t *testing.T) {
	repo := restRepoFor(t, time.Now(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.as1", r.URL.Query().Get("id"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"delivered": false}, body)
		_, _ = w.Write([]byte(`[{"id":"as1"}]`))
	})

	delivered := false
	require.NoError(t, repo.Update(context.Background(), "as1", domain.AssignmentPatch{Delivered: &delivered}))
}

func TestRESTUpdateMissingRow(t *testing.T) {
	repo := restRepoFor(t, time.Now(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	liters := 3.5
	err := repo.Update(context.Background(), "missing", domain.AssignmentPatch{Liters: &liters})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRESTUpdateEmptyPatchIsNoop(t *testing.T) {
	repo := restRepoFor(t, time.Now(), func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL)
	})
	require.NoError(t, repo.Update(context.Background(), "as1", domain.AssignmentPatch{}))
}
