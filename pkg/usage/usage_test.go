package usage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	windowStart = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2023, 1, 8, 0, 0, 0, 0, time.UTC)
)

func ts(day, hour int) time.Time {
	return time.Date(2023, 1, day, hour, 0, 0, 0, time.UTC)
}

func tp(t time.Time) *time.Time { return &t }

func TestUsage_Helpers(t *testing.T) {
	u := Usage{Name: "ipi-ci-op-abc-1609142345935650816", Plan: "m3.large.x86"}
	assert.Equal(t, "1609142345935650816", u.JobBuildID())
	assert.Equal(t, Identifier{Name: u.Name, Plan: "m3.large.x86"}, u.Identifier())
	assert.False(t, u.IsBandwidth())
	assert.True(t, Usage{Plan: "Outbound Bandwidth"}.IsBandwidth())
	assert.Equal(t, "nodash", Usage{Name: "nodash"}.JobBuildID())
}

func TestSelect(t *testing.T) {
	usages := []Usage{
		{Name: "machine-1", Plan: "m3.large.x86", StartDate: ts(2, 0), EndDate: tp(ts(2, 3))},
		{Name: "machine-1", Plan: "Outbound Bandwidth", StartDate: ts(1, 0), EndDate: tp(ts(9, 0))},
		{Name: "machine-2", Plan: "m3.large.x86", StartDate: ts(7, 20), EndDate: nil},
		{Name: "machine-3", Plan: "m3.large.x86", StartDate: ts(7, 20), EndDate: tp(ts(8, 2))},
		{Name: "machine-4", Plan: "Backend Transfer Bandwidth", StartDate: ts(9, 0), EndDate: tp(ts(9, 1))},
		{Name: "machine-0", Plan: "m3.large.x86", StartDate: time.Date(2022, 12, 31, 23, 0, 0, 0, time.UTC), EndDate: tp(ts(1, 1))},
	}

	got := Select(usages, windowStart, windowEnd)
	require.Len(t, got, 2)

	assert.Equal(t, "m3.large.x86", got[0].Plan)
	assert.Equal(t, "Outbound Bandwidth", got[1].Plan)
	assert.Equal(t, ts(2, 0), got[1].StartDate)
	assert.Equal(t, ts(2, 3), *got[1].EndDate)

	// input is not modified
	assert.Equal(t, ts(1, 0), usages[1].StartDate)
}

func TestClient_Usages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metal/v1/projects/proj-1/usages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "2023-01-01T00:00:00Z", r.URL.Query().Get("created[after]"))
		assert.Equal(t, "2023-01-08T00:00:00Z", r.URL.Query().Get("created[before]"))
		_, _ = w.Write([]byte(`{"usages":[
			{"name":"ipi-1","plan":"m3.large.x86","facility":"da11","metro":"da","plan_version":"v1","price":1.5,"quantity":2,"total":3,"type":"Instance","unit":"hour","start_date":"2023-01-02T00:00:00Z","end_date":"2023-01-02T02:00:00Z"},
			{"name":"ipi-2","plan":"m3.large.x86","facility":"da11","metro":"da","plan_version":"v1","price":1.5,"quantity":2,"total":3,"type":"Instance","unit":"hour","start_date":"2023-01-02T00:00:00Z","end_date":null}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", ProjectID: "proj-1", Token: "secret"}, srv.Client(), nil)
	got, err := c.Usages(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ipi-1", got[0].Name)
	assert.Equal(t, 3.0, got[0].Total)
}

func TestClient_Usages_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metal/v1/projects/denied/usages" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"usages": oops}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, ProjectID: "denied"}, nil, nil).Usages(context.Background(), windowStart, windowEnd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = NewClient(Config{BaseURL: srv.URL, ProjectID: "p"}, nil, nil).Usages(context.Background(), windowStart, windowEnd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode usages")
}
