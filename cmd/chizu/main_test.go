package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/search"
)

func fakeAPI(t *testing.T) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id":1,"name":"Frank Dining Hall","category":"dining","college":"Pomona","latitude":34.0975,"longitude":-117.7105},
			{"id":2,"name":"Honnold Library","category":"academic","college":"Claremont","latitude":34.1012,"longitude":-117.7090},
			{"id":3,"name":"Pomona Pool","category":"recreation","college":"Pomona"}
		]`)
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":10,"title":"Open Mic","event_type":"social","event_date":"2025-03-12","event_time":"7:00 PM","location":1,"status":"approved"}]`)
	})
	mux.HandleFunc("/starred", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("user_id"))
		_, _ = io.WriteString(w, `[{"id":5,"user_id":7,"item_type":"event","item_id":10}]`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("CHIZU_CONFIG", "")
	t.Setenv("CHIZU_API_BASE_URL", srv.URL)
	t.Setenv("CHIZU_LOG_LEVEL", "error")
	t.Setenv("CHIZU_ROUTING_API_KEY", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "chizu version "+Version+"\n", out)
}

func TestSearchCommand(t *testing.T) {
	fakeAPI(t)

	tests := []struct {
		name string
		args []string
		want []string
		not  []string
	}{
		{name: "by name", args: []string{"search", "frank"}, want: []string{"Frank Dining Hall"}, not: []string{"Honnold"}},
		{name: "by college", args: []string{"search", "pomona"}, want: []string{"Frank Dining Hall", "Pomona Pool"}},
		{name: "college matching off", args: []string{"search", "--college=false", "claremont"}, want: []string{"No locations found"}},
		{name: "no match", args: []string{"search", "zzz"}, want: []string{"No locations found"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, n := range tt.not {
				assert.NotContains(t, out, n)
			}
		})
	}
}

func TestRouteCommand(t *testing.T) {
	fakeAPI(t)

	out, err := execute(t, "route", "2", "--from", "34.0975,-117.7105")
	require.NoError(t, err)
	assert.Contains(t, out, "Directions to Honnold Library")
	assert.Contains(t, out, "Walk:")

	_, err = execute(t, "route", "3", "--from", "34.0975,-117.7105")
	assert.ErrorContains(t, err, "no coordinates")

	_, err = execute(t, "route", "99", "--from", "34.0975,-117.7105")
	assert.ErrorContains(t, err, "unknown location")

	_, err = execute(t, "route", "2")
	assert.ErrorContains(t, err, "--from is required")
}

func TestCalendarCommand(t *testing.T) {
	fakeAPI(t)

	path := filepath.Join(t.TempDir(), "starred.ics")
	_, err := execute(t, "calendar", "--user-id", "7", "--name", "Cecil", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")
	assert.Contains(t, string(data), "X-WR-CALNAME:Cecil's starred events")
	assert.Contains(t, string(data), "SUMMARY:Open Mic")

	_, err = execute(t, "calendar")
	assert.ErrorContains(t, err, "--user-id is required")
}

func TestPrintGroupsOrder(t *testing.T) {
	lat, lng := 34.1, -117.7
	groups := search.Groups{
		Other:  []model.Location{{ID: 4, Name: "Mail Room", Lat: &lat, Lng: &lng}},
		Dining: []model.Location{{ID: 1, Name: "Frank Dining Hall", College: "Pomona"}},
	}

	var buf bytes.Buffer
	require.NoError(t, printGroups(&buf, groups))
	out := buf.String()
	assert.Less(t, bytes.Index([]byte(out), []byte("Frank")), bytes.Index([]byte(out), []byte("Mail Room")))
}
