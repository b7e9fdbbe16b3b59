package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abraxas-365/workq/pkg/client"
	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/queue"
)

func TestClient_DecodesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/sys/queues/q/jobs":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"jobid":"h.1.1000.1"}`))
		case r.URL.Path == "/sys/queues/q/jobs/h.1.1000.1/status":
			w.Write([]byte(`{"state":"ACTIVE","step":"working"}`))
		case r.URL.Path == "/sys/queues/q/jobs" && r.URL.Query().Get("status") == "SUCCESS,FAILED":
			w.Write([]byte(`[{"metadata":{"jobid":"a"}}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Job not found","code":"QUEUE_JOB_NOT_FOUND","type":"NOT_FOUND","status":404}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := client.New(srv.URL, "sys", "q")

	jobid, err := c.Submit(ctx, queue.Job{Class: "echo", Vars: map[string]any{}})
	if err != nil || jobid != "h.1.1000.1" {
		t.Fatalf("submit: %s %v", jobid, err)
	}

	st, err := c.Status(ctx, jobid)
	if err != nil || st.State != queue.StateActive || st.Step == nil || *st.Step != "working" {
		t.Fatalf("status: %+v %v", st, err)
	}

	list, err := c.List(ctx, []queue.State{queue.StateSuccess, queue.StateFailed}, nil)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}

	_, err = c.Job(ctx, "missing")
	if !errx.IsType(err, errx.TypeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	var e *errx.Error
	if !errx.As(err, &e) || e.Code != "QUEUE_JOB_NOT_FOUND" || e.HTTPStatus != 404 {
		t.Fatalf("expected server code preserved, got %+v", e)
	}
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL, "sys", "q").Workers(context.Background())
	if !errx.HasCode(err, client.ErrResponse) {
		t.Fatalf("expected response error, got %v", err)
	}
}
