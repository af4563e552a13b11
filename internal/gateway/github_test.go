package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        testLogger(),
	}

	return gateway, server
}

func TestGitHubGateway_FetchRepoTotals(t *testing.T) {
	testCases := []struct {
		name            string
		graphqlBody     string
		contributorBody string
		statusCode      int
		expected        RepoTotals
		expectError     bool
		expectedErrMsg  string
	}{
		{
			name: "happy path - totals from GraphQL plus contributor pagination",
			// The inline fragment is flattened in the response, as the library expects.
			graphqlBody:     `{"data":{"repository":{"stargazerCount":42,"defaultBranchRef":{"target":{"history":{"totalCount":250}}}}}}`,
			contributorBody: `[{"login":"a"},{"login":"b"},{"login":"c"}]`,
			statusCode:      http.StatusOK,
			expected:        RepoTotals{Stargazers: 42, Commits: 250, Contributors: 3},
		},
		{
			name:            "error case - GraphQL query fails",
			graphqlBody:     `{"errors":[{"message":"Something went wrong"}]}`,
			contributorBody: `[]`,
			statusCode:      http.StatusOK,
			expectError:     true,
			expectedErrMsg:  "failed to execute GraphQL query",
		},
		{
			name:            "error case - contributors endpoint fails",
			graphqlBody:     `{"data":{"repository":{"stargazerCount":1}}}`,
			contributorBody: `{"message":"Internal Server Error"}`,
			statusCode:      http.StatusInternalServerError,
			expectError:     true,
			expectedErrMsg:  "failed to list contributors",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					body, err := io.ReadAll(r.Body)
					require.NoError(t, err)
					assert.Contains(t, string(body), "stargazerCount")
					w.WriteHeader(http.StatusOK)
					fmt.Fprint(w, tc.graphqlBody)
					return
				}
				assert.Contains(t, r.URL.Path, "/contributors")
				w.WriteHeader(tc.statusCode)
				fmt.Fprint(w, tc.contributorBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			totals, err := gateway.FetchRepoTotals(context.Background(), "any-owner", "any-repo")

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, totals)
			}
		})
	}
}

func TestGitHubGateway_FetchDailyTraffic(t *testing.T) {
	testCases := []struct {
		name           string
		date           string
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expected       DailyCount
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "happy path - date present in the breakdown",
			date: "2024-01-14",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.URL.Path, "/traffic/views")
				assert.Equal(t, "day", r.URL.Query().Get("per"))
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, `{"count":30,"uniques":7,"views":[
					{"timestamp":"2024-01-13T00:00:00Z","count":10,"uniques":3},
					{"timestamp":"2024-01-14T00:00:00Z","count":20,"uniques":4}]}`)
			},
			expected: DailyCount{Count: 20, Uniques: 4},
		},
		{
			name: "default case - date outside the retention window yields zeros",
			date: "2023-06-01",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, `{"count":10,"uniques":3,"views":[{"timestamp":"2024-01-13T00:00:00Z","count":10,"uniques":3}]}`)
			},
			expected: DailyCount{},
		},
		{
			name: "error case - GitHub API returns an error",
			date: "2024-01-14",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"Must have push access to repository"}`)
			},
			expectError:    true,
			expectedErrMsg: "failed to list traffic views",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()

			got, err := gateway.FetchDailyTraffic(context.Background(), "any-owner", "any-repo", tc.date)

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, got)
			}
		})
	}
}

func TestGitHubGateway_FetchDailyClones(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/traffic/clones")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"count":5,"uniques":2,"clones":[{"timestamp":"2024-01-14T00:00:00Z","count":5,"uniques":2}]}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	got, err := gateway.FetchDailyClones(context.Background(), "any-owner", "any-repo", "2024-01-14")
	require.NoError(t, err)
	assert.Equal(t, DailyCount{Count: 5, Uniques: 2}, got)

	// A date with no entry defaults to zero values.
	got, err = gateway.FetchDailyClones(context.Background(), "any-owner", "any-repo", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, DailyCount{}, got)
}
