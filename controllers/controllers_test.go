package controllers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civicsync/controllers"
	"civicsync/events"
	"civicsync/ledger"
	"civicsync/lifecycle"
	"civicsync/models"
	"civicsync/notify"
	"civicsync/repository/memstore"
	"civicsync/routes"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const governmentCode = "city-hall"

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
	bus    *events.LocalBus
}

func newTestAPI(t *testing.T) *testAPI {
	return newTestAPIWithRanks(t, ledger.DefaultRankTable())
}

func newTestAPIWithRanks(t *testing.T, ranks ledger.RankTable) *testAPI {
	t.Helper()
	log := zap.NewNop()
	store := memstore.New()
	bus := events.NewLocalBus()
	lc := lifecycle.New(store, ledger.New(ranks), lifecycle.DefaultRewards(),
		notify.NewDispatcher(store.Notifications(), log), bus, log)

	h := controllers.New(store, lc, bus, nil, ranks, controllers.AuthSettings{
		Secret:         "test-secret",
		TokenTTL:       time.Hour,
		GovernmentCode: governmentCode,
	}, log)

	return &testAPI{
		t:     t,
		store: store,
		bus:   bus,
		router: routes.NewRouter(h, routes.Options{
			JWTSecret:   "test-secret",
			CORSOrigins: []string{"http://localhost:3000"},
			Log:         log,
		}),
	}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// signup registers and logs in, returning the bearer token and profile id.
func (a *testAPI) signup(name, email string, extra map[string]string) (string, string) {
	a.t.Helper()
	body := map[string]string{"fullName": name, "email": email, "password": "hunter22"}
	for k, v := range extra {
		body[k] = v
	}
	w := a.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "hunter22"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[map[string]interface{}](a.t, w)
	return resp["token"].(string), resp["id"].(string)
}

func (a *testAPI) citizen() (string, string) {
	return a.signup("Ada Citizen", "ada@example.org", nil)
}

func (a *testAPI) official() (string, string) {
	return a.signup("Works Dept", "works@example.gov", map[string]string{
		"userType":       "government",
		"department":     "Public Works",
		"governmentCode": governmentCode,
	})
}

func (a *testAPI) createIssue(token string, body map[string]interface{}) models.Issue {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/issues", token, body)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Issue](a.t, w)
}

func TestPing(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")

	w = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)
	token, id := api.citizen()
	assert.NotEmpty(t, token)

	w := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Copycat", "email": "ADA@example.org", "password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.org", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]interface{}](t, w)
	assert.Equal(t, id, me["id"])
	assert.Equal(t, "citizen", me["userType"])
	assert.Equal(t, "bronze", me["rank"])
	assert.NotContains(t, w.Body.String(), "hunter22")

	w = api.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterUsesConfiguredStartingRank(t *testing.T) {
	ranks, err := ledger.NewRankTable([]ledger.Tier{
		{Rank: models.Silver, MinCoins: 0},
		{Rank: models.Gold, MinCoins: 500},
	})
	require.NoError(t, err)
	api := newTestAPIWithRanks(t, ranks)

	token, _ := api.citizen()
	w := api.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "silver", decode[map[string]interface{}](t, w)["rank"])

	report, err := ledger.NewReconciler(api.store, ranks, zap.NewNop()).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, report.Divergences)
}

func TestUpdateMe(t *testing.T) {
	api := newTestAPI(t)
	citizenToken, citizenID := api.citizen()
	officialToken, _ := api.official()

	w := api.do(http.MethodPatch, "/api/auth/me", citizenToken, map[string]interface{}{
		"fullName":    "  Ada Lovelace ",
		"phoneNumber": "555-0100",
		"address":     "12 Analytical Row",
		"userType":    "government",
		"civicCoins":  9999,
		"rank":        "diamond",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[map[string]interface{}](t, w)
	assert.Equal(t, "Ada Lovelace", updated["fullName"])
	assert.Equal(t, "555-0100", updated["phoneNumber"])
	assert.Equal(t, "12 Analytical Row", updated["address"])
	assert.Equal(t, "citizen", updated["userType"])
	assert.EqualValues(t, 0, updated["civicCoins"])
	assert.Equal(t, "bronze", updated["rank"])

	id, err := primitive.ObjectIDFromHex(citizenID)
	require.NoError(t, err)
	stored, err := api.store.Profiles().Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", stored.FullName)
	assert.Equal(t, models.Citizen, stored.UserType)

	w = api.do(http.MethodPatch, "/api/auth/me", citizenToken, map[string]string{"department": "Parks"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPatch, "/api/auth/me", citizenToken, map[string]string{"fullName": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPatch, "/api/auth/me", "", map[string]string{"fullName": "Nobody"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A department change carries through to the next claim.
	w = api.do(http.MethodPatch, "/api/auth/me", officialToken, map[string]string{"department": "Parks Department"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	issue := api.createIssue(citizenToken, map[string]interface{}{"title": "Broken bench", "category": "parks"})
	w = api.do(http.MethodPost, "/api/issues/"+issue.ID.Hex()+"/claim", officialToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	claimed := decode[models.Issue](t, w)
	require.NotNil(t, claimed.AssignedDepartment)
	assert.Equal(t, "Parks Department", *claimed.AssignedDepartment)
}

func TestGovernmentSignupNeedsCode(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "Impostor", "email": "fake@example.gov", "password": "hunter22", "userType": "government",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	citizenToken, citizenID := api.citizen()
	officialToken, _ := api.official()

	w := api.do(http.MethodPost, "/api/issues", officialToken, map[string]interface{}{"title": "x", "category": "roads"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/api/issues", citizenToken, map[string]interface{}{"title": "x", "category": "moon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	issue := api.createIssue(citizenToken, map[string]interface{}{
		"title":    "Broken hydrant",
		"category": "utilities",
		"priority": "high",
		"address":  "3 Oak Ave",
	})
	assert.Equal(t, models.Pending, issue.Status)
	path := "/api/issues/" + issue.ID.Hex()

	w = api.do(http.MethodPost, path+"/claim", citizenToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, path+"/claim", officialToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	claimed := decode[models.Issue](t, w)
	assert.Equal(t, models.InProgress, claimed.Status)
	require.NotNil(t, claimed.AssignedDepartment)
	assert.Equal(t, "Public Works", *claimed.AssignedDepartment)

	w = api.do(http.MethodPatch, path, officialToken, map[string]interface{}{"governmentNotes": "Crew dispatched"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(http.MethodPatch, path, officialToken, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, path+"/resolve", officialToken, map[string]interface{}{"governmentNotes": "Replaced valve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resolved := decode[models.Issue](t, w)
	assert.Equal(t, models.Resolved, resolved.Status)
	assert.EqualValues(t, 75, resolved.CoinsAwarded)
	assert.NotNil(t, resolved.ResolvedAt)

	w = api.do(http.MethodPost, path+"/resolve", officialToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = api.do(http.MethodPost, path+"/claim", officialToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPost, "/api/issues/"+strings.Repeat("a", 24)+"/resolve", officialToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = api.do(http.MethodPost, "/api/issues/not-an-id/resolve", officialToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/auth/me", citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]interface{}](t, w)
	assert.EqualValues(t, 75, me["civicCoins"])
	assert.EqualValues(t, 1, me["totalReports"])
	assert.EqualValues(t, 1, me["resolvedReports"])
	assert.EqualValues(t, 2, me["unreadNotifications"])

	w = api.do(http.MethodGet, "/api/profile/transactions", citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	txs := decode[struct {
		Transactions []models.LedgerEntry `json:"transactions"`
	}](t, w)
	require.Len(t, txs.Transactions, 1)
	assert.Equal(t, "Issue resolved: Broken hydrant", txs.Transactions[0].Description)

	w = api.do(http.MethodGet, "/api/notifications", citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	inbox := decode[struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int64                 `json:"unread"`
	}](t, w)
	require.Len(t, inbox.Notifications, 2)
	assert.Equal(t, models.NotifyIssueResolved, inbox.Notifications[0].Type)
	assert.EqualValues(t, 2, inbox.Unread)

	w = api.do(http.MethodPost, "/api/notifications/"+inbox.Notifications[0].ID.Hex()+"/read", citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodPost, "/api/notifications/"+inbox.Notifications[0].ID.Hex()+"/read", officialToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/leaderboard?type=citizen", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	board := decode[struct {
		Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
	}](t, w)
	require.Len(t, board.Leaderboard, 1)
	assert.Equal(t, 1, board.Leaderboard[0].Position)
	assert.Equal(t, citizenID, board.Leaderboard[0].ID.Hex())
	assert.EqualValues(t, 75, board.Leaderboard[0].CivicCoins)

	w = api.do(http.MethodGet, "/api/leaderboard?type=aliens", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.PlatformStats](t, w)
	assert.EqualValues(t, 1, stats.TotalIssues)
	assert.EqualValues(t, 1, stats.ResolvedIssues)
	assert.EqualValues(t, 1, stats.ActiveCitizens)
}

func TestListingAndVotes(t *testing.T) {
	api := newTestAPI(t)
	citizenToken, citizenID := api.citizen()
	otherToken, _ := api.signup("Grace", "grace@example.org", nil)

	lat, lng := 51.5, -0.12
	public := api.createIssue(citizenToken, map[string]interface{}{
		"title": "Overflowing bin", "category": "environment", "latitude": lat, "longitude": lng,
	})
	api.createIssue(citizenToken, map[string]interface{}{
		"title": "Suspicious wiring", "category": "safety", "isAnonymous": true,
	})
	api.createIssue(otherToken, map[string]interface{}{"title": "Loose paving", "category": "roads"})

	type listing struct {
		Issues      []controllers.IssueWithVotes `json:"issues"`
		TotalIssues int64                        `json:"totalIssues"`
		TotalPages  int                          `json:"totalPages"`
		CurrentPage int                          `json:"currentPage"`
	}

	w := api.do(http.MethodGet, "/api/issues?limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[listing](t, w)
	assert.EqualValues(t, 3, page.TotalIssues)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Issues, 2)

	w = api.do(http.MethodGet, "/api/issues?category=safety", otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[listing](t, w)
	require.Len(t, page.Issues, 1)
	assert.True(t, page.Issues[0].ReporterID.IsZero())
	assert.Equal(t, "Anonymous", page.Issues[0].CreatedBy["name"])

	w = api.do(http.MethodGet, "/api/issues?category=safety", citizenToken, nil)
	page = decode[listing](t, w)
	require.Len(t, page.Issues, 1)
	assert.Equal(t, citizenID, page.Issues[0].ReporterID.Hex())

	w = api.do(http.MethodGet, "/api/issues?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/issues/mine", citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[listing](t, w).TotalIssues)

	w = api.do(http.MethodGet, "/api/issues?search=paving", "", nil)
	assert.EqualValues(t, 1, decode[listing](t, w).TotalIssues)

	w = api.do(http.MethodGet, "/api/issues/map", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	points := decode[struct {
		Issues []map[string]interface{} `json:"issues"`
	}](t, w)
	require.Len(t, points.Issues, 1)
	assert.Equal(t, public.ID.Hex(), points.Issues[0]["id"])

	votePath := "/api/issues/" + public.ID.Hex() + "/vote"
	w = api.do(http.MethodPost, votePath, otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	vote := decode[map[string]interface{}](t, w)
	assert.Equal(t, true, vote["voted"])
	assert.EqualValues(t, 1, vote["votes"])

	w = api.do(http.MethodGet, "/api/issues/"+public.ID.Hex(), otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[controllers.IssueWithVotes](t, w)
	assert.EqualValues(t, 1, detail.Votes)
	assert.True(t, detail.UserHasVoted)
	assert.Equal(t, "Ada Citizen", detail.CreatedBy["name"])

	w = api.do(http.MethodPost, votePath, otherToken, nil)
	vote = decode[map[string]interface{}](t, w)
	assert.Equal(t, false, vote["voted"])
	assert.EqualValues(t, 0, vote["votes"])

	w = api.do(http.MethodPost, votePath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStreamIssues(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/issues/stream", nil)
	require.NoError(t, err)

	ev := models.IssueEvent{Type: "issue_claimed", Status: models.InProgress}
	got := make(chan string, 1)
	go func() {
		resp, err := srv.Client().Do(req)
		if err != nil {
			got <- ""
			return
		}
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), "event:") {
				got <- scanner.Text()
				return
			}
		}
		got <- ""
	}()

	// The handler subscribes asynchronously; publish until the stream
	// delivers.
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case line := <-got:
			assert.Equal(t, "event:issue_claimed", line)
			return
		case <-tick.C:
			require.NoError(t, api.bus.Publish(ctx, ev))
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}
