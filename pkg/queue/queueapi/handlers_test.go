package queueapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Abraxas-365/workq/pkg/queue"
	"github.com/Abraxas-365/workq/pkg/queue/queueapi"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	m := queue.NewManager(rdb, queue.WithHostname("h"), queue.WithPID(1))
	m.Add("sys", "q")

	app := fiber.New(fiber.Config{ErrorHandler: queueapi.ErrorHandler})
	queueapi.NewHandlers(m).RegisterRoutes(app)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func submit(t *testing.T, app *fiber.App, doc string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sys/queues/q/jobs", strings.NewReader(doc))
	req.Header.Set("Content-Type", "application/json")
	status, body := do(t, app, req)
	if status != http.StatusCreated {
		t.Fatalf("submit: %d %s", status, body)
	}
	var resp queueapi.SubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.JobID
}

func TestSubmitAndFetch(t *testing.T) {
	app := newApp(t)
	jobid := submit(t, app, `{"class":"echo","vars":{"msg":"hi"}}`)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/sys/queues/q/jobs/"+jobid, nil))
	if status != http.StatusOK {
		t.Fatalf("job: %d %s", status, body)
	}
	var job queue.Job
	json.Unmarshal(body, &job)
	if job.Metadata.JobID != jobid || job.Vars["msg"] != "hi" {
		t.Fatalf("unexpected document %s", body)
	}

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/sys/queues/q/jobs/"+jobid+"/status", nil))
	if status != http.StatusOK || string(body) != `{"state":"ACTIVE","step":null}` {
		t.Fatalf("status: %d %s", status, body)
	}
}

func TestSubmit_FormField(t *testing.T) {
	app := newApp(t)
	form := url.Values{"job": {`{"class":"echo","vars":{}}`}}
	req := httptest.NewRequest(http.MethodPost, "/sys/queues/q/jobs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body := do(t, app, req)
	if status != http.StatusCreated || !strings.Contains(string(body), `"jobid"`) {
		t.Fatalf("submit: %d %s", status, body)
	}
}

func TestSubmit_Errors(t *testing.T) {
	app := newApp(t)

	cases := []struct {
		path, body string
		status     int
		code       string
	}{
		{"/sys/queues/q/jobs", `{"vars":{}}`, http.StatusPreconditionFailed, "QUEUE_MISSING_CLASS"},
		{"/sys/queues/q/jobs", `not json`, http.StatusBadRequest, "API_BAD_BODY"},
		{"/sys/queues/other/jobs", `{"class":"echo","vars":{}}`, http.StatusNotFound, "QUEUE_QUEUE_NOT_FOUND"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		status, body := do(t, app, req)
		if status != tc.status {
			t.Fatalf("%s %s: expected %d, got %d %s", tc.path, tc.body, tc.status, status, body)
		}
		var resp map[string]any
		json.Unmarshal(body, &resp)
		if resp["code"] != tc.code {
			t.Fatalf("expected code %s, got %v", tc.code, resp["code"])
		}
	}
}

func TestListAndCancel(t *testing.T) {
	app := newApp(t)
	jobid := submit(t, app, `{"class":"echo","vars":{"msg":"hi"}}`)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/sys/queues/q/jobs?status=PENDING&fields=class,metadata", nil))
	if status != http.StatusOK {
		t.Fatalf("list: %d %s", status, body)
	}
	var list []map[string]any
	json.Unmarshal(body, &list)
	if len(list) != 1 || list[0]["class"] != "echo" {
		t.Fatalf("unexpected list %s", body)
	}

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/sys/queues/q/jobs?status=BOGUS", nil))
	if status != http.StatusBadRequest {
		t.Fatalf("expected bad filter, got %d %s", status, body)
	}

	status, body = do(t, app, httptest.NewRequest(http.MethodDelete, "/sys/queues/q/jobs/"+jobid, nil))
	if status != http.StatusOK || !strings.Contains(string(body), jobid) {
		t.Fatalf("cancel: %d %s", status, body)
	}
	status, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/sys/queues/q/jobs/"+jobid, nil))
	if status != http.StatusNotFound {
		t.Fatalf("expected cancelled job to be gone, got %d", status)
	}
	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/sys/queues/q/jobs/"+jobid+"/status", nil))
	if status != http.StatusOK || !strings.Contains(string(body), `"UNKNOWN"`) {
		t.Fatalf("status after cancel: %d %s", status, body)
	}
}

func TestWorkers(t *testing.T) {
	app := newApp(t)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/sys/queues/q/workers", nil))
	if status != http.StatusOK || string(body) != "[]" {
		t.Fatalf("workers: %d %s", status, body)
	}
	status, _ = do(t, app, httptest.NewRequest(http.MethodDelete, "/sys/queues/q/workers/h.1.1.000000", nil))
	if status != http.StatusNotFound {
		t.Fatalf("expected unknown worker to 404, got %d", status)
	}
}
