package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"parcelscraper/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestAllowed(t *testing.T) {
	robots := "User-agent: *\nDisallow: /private/\nAllow: /private/search\n\nUser-agent: badbot\nDisallow: /\n"

	cases := []struct {
		name     string
		status   int
		body     string
		path     string
		agent    string
		expected bool
	}{
		{name: "open path", status: 200, body: robots, path: "/Search/SalesSearch", expected: true},
		{name: "disallowed path", status: 200, body: robots, path: "/private/data", expected: false},
		{name: "allow overrides", status: 200, body: robots, path: "/private/search", expected: true},
		{name: "agent group", status: 200, body: robots, path: "/Search", agent: "badbot", expected: false},
		{name: "missing robots", status: 404, path: "/private/data", expected: true},
		{name: "server error", status: 503, path: "/Search", expected: false},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			base := serve(t, test.status, test.body)
			checker := NewChecker(Options{Agent: test.agent}, &telemetry.Recorder{})

			allowed, err := checker.Allowed(context.Background(), base+test.path)
			require.NoError(t, err)
			require.Equal(t, test.expected, allowed)
		})
	}
}

func TestRequire(t *testing.T) {
	base := serve(t, 200, "User-agent: *\nDisallow: /\n")
	checker := NewChecker(Options{}, &telemetry.Recorder{})

	err := checker.Require(context.Background(), base+"/Search")
	require.ErrorIs(t, err, ErrDisallowed)

	err = checker.Require(context.Background(), "not a url")
	require.Error(t, err)
}
