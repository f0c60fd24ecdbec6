package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tasknest/internal/db"
	"github.com/tasknest/internal/handler"
	"github.com/tasknest/internal/router"
)

type e2eSuite struct {
	handler   http.Handler
	public    httpClient
	user      httpClient
	baseURL   string
	username  string
	password  string
	weeklyID  uint
	dailyID   uint
	plainIDs  []uint
	instance  uint
	virtualID string
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

// 2026-10-12 是周一
var e2eNow = time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)

func TestE2E_CalendarFlow(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("public endpoints", suite.testPublicEndpoints)
	suite.login(t)
	t.Run("items", suite.testItems)
	t.Run("calendar", suite.testCalendar)
	t.Run("occurrences", suite.testOccurrences)
	t.Run("notifications", suite.testNotifications)
	t.Run("ics export", suite.testICS)
	t.Run("logout", suite.testLogout)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file:e2e?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if _, err := db.EnsureUser(gdb, "admin", "e2e-secret"); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	api := handler.NewAPI(gdb, handler.Options{
		Location:      time.UTC,
		Now:           func() time.Time { return e2eNow },
		LookaheadDays: 14,
		NotifyDays:    7,
	})
	engine := router.SetupRouter(api, "test-session-secret")

	return &e2eSuite{
		handler:  engine,
		public:   newLocalClient(engine, false),
		user:     newLocalClient(engine, true),
		baseURL:  "http://example.test",
		username: "admin",
		password: "e2e-secret",
	}
}

func (s *e2eSuite) login(t *testing.T) {
	t.Helper()
	resp := s.mustRequestJSON(t, s.user, http.MethodPost, "/login", map[string]interface{}{
		"username": s.username,
		"password": s.password,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed, status %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testPublicEndpoints(t *testing.T) {
	for _, path := range []string{"/ping", "/healthz"} {
		resp := s.mustRequest(t, s.public, http.MethodGet, path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}

	resp := s.mustRequest(t, s.public, http.MethodGet, "/api/calendar/items", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous calendar access: expected 401, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.public, http.MethodPost, "/login", map[string]interface{}{
		"username": s.username,
		"password": "wrong",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) createItem(t *testing.T, kind string, payload map[string]interface{}) uint {
	t.Helper()
	resp := s.mustRequestJSON(t, s.user, http.MethodPost, "/api/"+kind, payload)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create %s: expected 201, got %d: %s", kind, resp.StatusCode, readBody(t, resp))
	}
	var out struct {
		Item struct {
			ID uint `json:"id"`
		} `json:"item"`
	}
	decodeJSON(t, resp, &out)
	return out.Item.ID
}

func (s *e2eSuite) testItems(t *testing.T) {
	s.weeklyID = s.createItem(t, "todos", map[string]interface{}{
		"title":              "浇花",
		"notes":              "阳台和客厅",
		"due_date":           "2026-10-07",
		"recurrence_pattern": "weekly",
	})
	s.dailyID = s.createItem(t, "tasks", map[string]interface{}{
		"title":               "吃药",
		"due_date":            "2026-10-12",
		"recurrence_pattern":  "daily",
		"recurrence_end_date": "2026-10-15",
		"priority":            "urgent",
	})
	for _, title := range []string{"交电费", "取快递", "回邮件"} {
		s.plainIDs = append(s.plainIDs, s.createItem(t, "tasks", map[string]interface{}{
			"title":    title,
			"due_date": "2026-10-16",
		}))
	}

	for _, id := range s.plainIDs[:2] {
		resp := s.mustRequestJSON(t, s.user, http.MethodPut, "/api/tasks/"+idStr(id)+"/complete", map[string]interface{}{"completed": true})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("complete task %d: expected 200, got %d", id, resp.StatusCode)
		}
	}

	resp := s.mustRequest(t, s.user, http.MethodGet, "/api/tasks?completed=true", nil, nil)
	var list struct {
		Items []map[string]interface{} `json:"items"`
	}
	decodeJSON(t, resp, &list)
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 completed tasks, got %d", len(list.Items))
	}

	resp = s.mustRequestJSON(t, s.user, http.MethodPost, "/api/todos", map[string]interface{}{
		"title":              "坏规则",
		"recurrence_pattern": "fortnightly",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown pattern: expected 400, got %d", resp.StatusCode)
	}
}

type dayPayload struct {
	Count int `json:"count"`
	Items []struct {
		ID                  string `json:"id"`
		Title               string `json:"title"`
		Type                string `json:"type"`
		Completed           bool   `json:"completed"`
		IsRecurring         bool   `json:"is_recurring"`
		IsVirtualOccurrence bool   `json:"is_virtual_occurrence"`
		RecurringParentID   *uint  `json:"recurring_parent_id"`
	} `json:"items"`
}

func (s *e2eSuite) day(t *testing.T, date string) dayPayload {
	t.Helper()
	resp := s.mustRequest(t, s.user, http.MethodGet, "/api/calendar/items?date="+date, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("items %s: expected 200, got %d", date, resp.StatusCode)
	}
	var out dayPayload
	decodeJSON(t, resp, &out)
	return out
}

func (s *e2eSuite) testCalendar(t *testing.T) {
	resp := s.mustRequest(t, s.user, http.MethodPost, "/api/calendar/refresh", nil, nil)
	var refresh struct {
		Today         string   `json:"today"`
		WindowEnd     string   `json:"window_end"`
		FailedSources []string `json:"failed_sources"`
	}
	decodeJSON(t, resp, &refresh)
	if refresh.Today != "2026-10-12" || refresh.WindowEnd != "2026-10-26" || len(refresh.FailedSources) != 0 {
		t.Fatalf("unexpected refresh payload: %+v", refresh)
	}

	// 每周三：14 与 21 号为虚拟日期，7 号由父条目自身占据
	for _, date := range []string{"2026-10-14", "2026-10-21"} {
		d := s.day(t, date)
		if len(d.Items) != 1 || !d.Items[0].IsVirtualOccurrence || d.Items[0].Title != "浇花" {
			t.Fatalf("%s: expected one virtual 浇花, got %+v", date, d.Items)
		}
	}
	if d := s.day(t, "2026-10-07"); len(d.Items) != 1 || d.Items[0].IsVirtualOccurrence {
		t.Fatalf("anchor date should hold the parent row, got %+v", d.Items)
	}

	// 每日到 15 号截止
	for _, date := range []string{"2026-10-13", "2026-10-14", "2026-10-15"} {
		found := false
		for _, item := range s.day(t, date).Items {
			if item.Title == "吃药" {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: expected daily task occurrence", date)
		}
	}
	for _, item := range s.day(t, "2026-10-16").Items {
		if item.Title == "吃药" {
			t.Fatal("daily task must stop after its end date")
		}
	}

	d := s.day(t, "2026-10-16")
	if len(d.Items) != 3 || d.Count != 1 {
		t.Fatalf("2026-10-16: expected 3 items / count 1, got %d / %d", len(d.Items), d.Count)
	}

	resp = s.mustRequest(t, s.user, http.MethodGet, "/api/calendar/count?date=2026-10-16", nil, nil)
	var count struct {
		Count int `json:"count"`
		Dots  int `json:"dots"`
	}
	decodeJSON(t, resp, &count)
	if count.Count != 1 || count.Dots != 1 {
		t.Fatalf("unexpected count payload: %+v", count)
	}

	resp = s.mustRequest(t, s.user, http.MethodGet, "/api/calendar/month?month=2026-10", nil, nil)
	var month struct {
		Days []struct {
			Date  string `json:"date"`
			Count int    `json:"count"`
		} `json:"days"`
	}
	decodeJSON(t, resp, &month)
	if len(month.Days) != 31 {
		t.Fatalf("expected 31 days in October, got %d", len(month.Days))
	}
}

func (s *e2eSuite) testOccurrences(t *testing.T) {
	s.virtualID = fmt.Sprintf("virtual-%d-2026-10-14", s.weeklyID)

	resp := s.mustRequestJSON(t, s.user, http.MethodPost, "/api/occurrences/materialize", map[string]interface{}{
		"type":       "todo",
		"virtual_id": s.virtualID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("materialize: expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	var out struct {
		Item struct {
			ID                uint   `json:"id"`
			DueDate           string `json:"due_date"`
			Notes             string `json:"notes"`
			RecurringParentID *uint  `json:"recurring_parent_id"`
		} `json:"item"`
	}
	decodeJSON(t, resp, &out)
	if out.Item.DueDate != "2026-10-14" || out.Item.Notes != "阳台和客厅" || out.Item.RecurringParentID == nil || *out.Item.RecurringParentID != s.weeklyID {
		t.Fatalf("unexpected instance: %+v", out.Item)
	}
	s.instance = out.Item.ID

	// 重复触发返回同一实例
	resp = s.mustRequestJSON(t, s.user, http.MethodPost, "/api/occurrences/materialize", map[string]interface{}{
		"type":      "todo",
		"parent_id": s.weeklyID,
		"date":      "2026-10-14",
	})
	decodeJSON(t, resp, &out)
	if out.Item.ID != s.instance {
		t.Fatalf("expected instance %d again, got %d", s.instance, out.Item.ID)
	}

	d := s.day(t, "2026-10-14")
	var todos int
	for _, item := range d.Items {
		if item.Type != "todo" {
			continue
		}
		todos++
		if item.IsVirtualOccurrence || item.ID != idStr(s.instance) || !item.IsRecurring {
			t.Fatalf("expected the materialized instance only, got %+v", item)
		}
	}
	if todos != 1 {
		t.Fatalf("expected exactly one todo on 2026-10-14, got %d", todos)
	}

	resp = s.mustRequestJSON(t, s.user, http.MethodPost, "/api/occurrences/complete", map[string]interface{}{
		"type":      "todo",
		"parent_id": s.weeklyID,
		"date":      "2026-10-21",
		"completed": true,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete occurrence: expected 200, got %d", resp.StatusCode)
	}
	d = s.day(t, "2026-10-21")
	if len(d.Items) != 1 || d.Items[0].IsVirtualOccurrence || !d.Items[0].Completed || d.Count != 0 {
		t.Fatalf("expected a completed instance on 2026-10-21, got %+v (count %d)", d.Items, d.Count)
	}

	resp = s.mustRequestJSON(t, s.user, http.MethodPost, "/api/occurrences/materialize", map[string]interface{}{
		"type":      "todo",
		"parent_id": s.weeklyID,
		"date":      "2026-10-15",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("off-pattern date: expected 422, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testNotifications(t *testing.T) {
	resp := s.mustRequest(t, s.user, http.MethodGet, "/api/notifications/upcoming?days=7", nil, nil)
	var upcoming struct {
		Upcoming []struct {
			ParentID uint     `json:"parent_id"`
			Type     string   `json:"type"`
			Dates    []string `json:"dates"`
		} `json:"upcoming"`
	}
	decodeJSON(t, resp, &upcoming)
	if len(upcoming.Upcoming) != 2 {
		t.Fatalf("expected 2 recurring parents, got %+v", upcoming.Upcoming)
	}
	for _, u := range upcoming.Upcoming {
		switch u.Type {
		case "todo":
			if strings.Join(u.Dates, ",") != "2026-10-14" {
				t.Fatalf("weekly dates: %v", u.Dates)
			}
		case "task":
			if strings.Join(u.Dates, ",") != "2026-10-12,2026-10-13,2026-10-14,2026-10-15" {
				t.Fatalf("daily dates: %v", u.Dates)
			}
		}
	}

	resp = s.mustRequest(t, s.user, http.MethodGet, "/api/notifications/today", nil, nil)
	var today struct {
		Items []struct {
			Title string `json:"title"`
		} `json:"items"`
	}
	decodeJSON(t, resp, &today)
	if len(today.Items) != 1 || today.Items[0].Title != "吃药" {
		t.Fatalf("expected the daily task due today, got %+v", today.Items)
	}

	resp = s.mustRequest(t, s.user, http.MethodGet, "/api/notifications/latest", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("latest before any digest: expected 404, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.user, http.MethodPost, "/api/notifications/notify-now", nil, nil)
	var now struct {
		Digest struct {
			ID       string `json:"id"`
			Date     string `json:"date"`
			Upcoming []any  `json:"upcoming"`
		} `json:"digest"`
	}
	decodeJSON(t, resp, &now)
	if now.Digest.ID == "" || now.Digest.Date != "2026-10-12" || len(now.Digest.Upcoming) != 2 {
		t.Fatalf("unexpected digest: %+v", now.Digest)
	}

	resp = s.mustRequest(t, s.user, http.MethodGet, "/api/notifications/latest", nil, nil)
	var latest struct {
		Digest struct {
			ID string `json:"id"`
		} `json:"digest"`
	}
	decodeJSON(t, resp, &latest)
	if latest.Digest.ID != now.Digest.ID {
		t.Fatalf("latest digest %q does not match %q", latest.Digest.ID, now.Digest.ID)
	}
}

func (s *e2eSuite) testICS(t *testing.T) {
	resp := s.mustRequest(t, s.user, http.MethodGet, "/api/calendar.ics", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ics: expected 200, got %d", resp.StatusCode)
	}
	body := readBody(t, resp)
	for _, want := range []string{"BEGIN:VCALENDAR", "BEGIN:VEVENT", "SUMMARY:浇花", "X-TASKNEST-VIRTUAL:TRUE"} {
		if !strings.Contains(body, want) {
			t.Fatalf("ics body missing %q", want)
		}
	}
}

func (s *e2eSuite) testLogout(t *testing.T) {
	resp := s.mustRequest(t, s.user, http.MethodPost, "/logout", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.user, http.MethodGet, "/api/tasks", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) mustRequest(t *testing.T, client httpClient, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("failed to build request %s %s: %v", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) mustRequestJSON(t *testing.T, client httpClient, method, path string, payload map[string]interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return s.mustRequest(t, client, method, path, bytes.NewReader(data), headers)
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		t.Fatalf("failed to decode json: %v\nbody=%s", err, body)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}

func idStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
