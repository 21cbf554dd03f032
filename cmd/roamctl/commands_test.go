package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
	Query  string
}

func newFakeDaemon(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		rec.Query = r.URL.RawQuery
		requests = append(requests, rec)

		handler, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no route"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func runCLI(t *testing.T, address string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--address", address}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSendJoinsArguments(t *testing.T) {
	srv, requests := newFakeDaemon(t, map[string]func(http.ResponseWriter){
		"POST /api/v1/server/command": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"message":"Command sent"}`))
		},
	})

	out, err := runCLI(t, srv.URL, "send", "say", "hello", "world")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.Contains(out, "Sent: say hello world") {
		t.Fatalf("unexpected output %q", out)
	}
	if got := (*requests)[0].Body["command"]; got != "say hello world" {
		t.Fatalf("unexpected command body %v", got)
	}
}

func TestStopReportsNothingRunning(t *testing.T) {
	srv, _ := newFakeDaemon(t, map[string]func(http.ResponseWriter){
		"POST /api/v1/server/stop": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"stopped":false}`))
		},
	})

	out, err := runCLI(t, srv.URL, "stop")
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !strings.Contains(out, "No server was running") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatsPrintsSnapshot(t *testing.T) {
	srv, _ := newFakeDaemon(t, map[string]func(http.ResponseWriter){
		"GET /api/v1/server/stats": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"cpu":12.5,"memory":1048576,"status":"Running","player_count":3}`))
		},
	})

	out, err := runCLI(t, srv.URL, "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	for _, want := range []string{"Running", "12.5%", "1.0 MiB", "3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}
}

func TestConfigSetSendsDescriptor(t *testing.T) {
	srv, requests := newFakeDaemon(t, map[string]func(http.ResponseWriter){
		"PUT /api/v1/server/config": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"config":{"path":"/srv/mc","jar_name":"paper.jar","min_ram":"1G","max_ram":"4G"}}`))
		},
	})

	out, err := runCLI(t, srv.URL, "config", "set", "--path", "/srv/mc", "--jar", "paper.jar", "--max-ram", "4G")
	if err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	body := (*requests)[0].Body
	if body["path"] != "/srv/mc" || body["jar_name"] != "paper.jar" || body["max_ram"] != "4G" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, hasName := body["name"]; hasName {
		t.Fatalf("name should be omitted when not given: %v", body)
	}
	if !strings.Contains(out, "Configured mc") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAPIErrorIsReturned(t *testing.T) {
	srv, _ := newFakeDaemon(t, map[string]func(http.ResponseWriter){
		"POST /api/v1/server/start": func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusPreconditionFailed)
			_, _ = w.Write([]byte(`{"error":"server configuration is not set"}`))
		},
	})

	_, err := runCLI(t, srv.URL, "start")
	apiErr, ok := err.(*apiError)
	if !ok {
		t.Fatalf("expected apiError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusPreconditionFailed || apiErr.Message != "server configuration is not set" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestNewAPIClientDefaults(t *testing.T) {
	if c := newAPIClient(""); c.base != defaultAddress {
		t.Fatalf("unexpected default base %q", c.base)
	}
	if c := newAPIClient("10.0.0.2:8765/"); c.base != "http://10.0.0.2:8765" {
		t.Fatalf("unexpected base %q", c.base)
	}
}

func TestLogsErrorsFilter(t *testing.T) {
	srv, requests := newFakeDaemon(t, map[string]func(http.ResponseWriter){
		"GET /api/v1/server/console": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"lines":["[Server thread/WARN]: Can't keep up!"]}`))
		},
	})

	out, err := runCLI(t, srv.URL, "logs", "--errors", "-n", "20")
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	if !strings.Contains(out, "Can't keep up!") {
		t.Fatalf("unexpected output %q", out)
	}
	if q := (*requests)[0].Query; !strings.Contains(q, "filter=errors") || !strings.Contains(q, "lines=20") {
		t.Fatalf("unexpected query %q", q)
	}
}
