package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/2beens/mergington/internal/activities"
	"github.com/2beens/mergington/internal/auth"
	"github.com/2beens/mergington/internal/login"
	"github.com/2beens/mergington/pkg"
)

func (s *IntegrationTestSuite) do(client *testClient, method, path string, body any) (*http.Response, []byte) {
	t := s.T()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, serverEndpoint+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "integration-test")
	req.Header.Set("X-Real-Ip", client.ip)

	resp, err := client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	t.Logf("%s %s -> %d", method, path, resp.StatusCode)
	return resp, respBytes
}

func (s *IntegrationTestSuite) list(client *testClient) map[string]activities.Activity {
	resp, body := s.do(client, http.MethodGet, "/activities", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var list map[string]activities.Activity
	s.Require().NoError(json.Unmarshal(body, &list))
	return list
}

func activityPath(activity, action, email string) string {
	return "/activities/" + url.PathEscape(activity) + "/" + action + "?email=" + url.QueryEscape(email)
}

func (s *IntegrationTestSuite) TestCoordinatorScenario() {
	client := s.newClient("10.0.0.1")
	seeded := s.list(client)["Chess Club"].Participants
	s.Require().Len(seeded, 2)

	resp, body := s.do(client, http.MethodPost, "/auth/login", login.Request{
		Username: "mrs.hart",
		Password: "coordinator123",
		Role:     "coordinator",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	var loginResp login.Response
	s.Require().NoError(json.Unmarshal(body, &loginResp))
	s.Equal(auth.Identity{Username: "mrs.hart", Role: auth.RoleCoordinator}, loginResp.User)

	// the session lives in redis
	var token string
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			token = c.Value
		}
	}
	s.Require().NotEmpty(token)
	isMember, err := s.redisClient.SIsMember(context.Background(), "mergington-sessions", token).Result()
	s.Require().NoError(err)
	s.True(isMember)

	resp, body = s.do(client, http.MethodPost, activityPath("Chess Club", "signup", "new@x.edu"), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Contains(s.list(client)["Chess Club"].Participants, "new@x.edu")

	resp, body = s.do(client, http.MethodDelete, activityPath("Chess Club", "unregister", "new@x.edu"), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Equal(seeded, s.list(client)["Chess Club"].Participants)

	resp, _ = s.do(client, http.MethodPost, "/auth/logout", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	exists, err := s.redisClient.Exists(context.Background(), "mergington-session||"+token).Result()
	s.Require().NoError(err)
	s.Zero(exists)

	resp, body = s.do(client, http.MethodPost, activityPath("Chess Club", "signup", "late@x.edu"), nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	var detail pkg.DetailResponse
	s.Require().NoError(json.Unmarshal(body, &detail))
	s.Equal("Authentication required", detail.Detail)
}

func (s *IntegrationTestSuite) TestPerformerForbiddenToUnregister() {
	client := s.newClient("10.0.0.2")

	resp, body := s.do(client, http.MethodPost, "/auth/login", login.Request{
		Username: "liam",
		Password: "stage-left",
		Role:     "performer",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	resp, _ = s.do(client, http.MethodPost, activityPath("Drama Club", "signup", "liam@mergington.edu"), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, body = s.do(client, http.MethodDelete, activityPath("Drama Club", "unregister", "liam@mergington.edu"), nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Contains(string(body), "Insufficient role permissions")
}

func (s *IntegrationTestSuite) TestLoginRateLimitedThroughRedis() {
	client := s.newClient("10.0.0.3")

	limited := false
	for i := 0; i < 10; i++ {
		resp, _ := s.do(client, http.MethodPost, "/auth/login", login.Request{
			Username: "emma",
			Password: "not-the-password",
			Role:     "performer",
		})
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			s.NotEmpty(resp.Header.Get("Retry-After"))
			break
		}
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	}
	s.True(limited, "login should be rate limited")

	// further logins from this address stay limited for the rest of the minute
	resp, _ := s.do(client, http.MethodPost, "/auth/login", login.Request{
		Username: "emma",
		Password: "performer123",
		Role:     "performer",
	})
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestMetricsEndpoint() {
	client := s.newClient("10.0.0.4")
	s.list(client)

	resp, err := client.Get("http://" + serverHost + ":" + metricsPort + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.True(strings.Contains(string(body), "mergington_backend_request"), "metrics should expose request counters")
}
