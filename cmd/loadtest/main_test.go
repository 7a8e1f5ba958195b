package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	for _, mode := range []loadMode{modePlace, modePlaceUpdate, modePlaceDelete} {
		got, err := parseMode(" " + string(mode) + " ")
		if err != nil || got != mode {
			t.Fatalf("parseMode(%q) = %q, %v", mode, got, err)
		}
	}
	if _, err := parseMode("create-pay"); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig(nil)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.total != 400 || cfg.concurrency != 20 || cfg.mode != modePlace || cfg.totalSet {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	cfg, err = parseConfig([]string{"-duration=1m", "-total=10", "-mode=place-update", "-url=http://api:8080"})
	if err != nil {
		t.Fatalf("overrides: %v", err)
	}
	if !cfg.totalSet || cfg.duration != time.Minute || cfg.mode != modePlaceUpdate || cfg.baseURL != "http://api:8080" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}

	invalid := map[string][]string{
		"bad timeout":       {"-timeout=soon"},
		"zero timeout":      {"-timeout=0s"},
		"bad duration":      {"-duration=later"},
		"negative duration": {"-duration=-1s"},
		"zero total":        {"-total=0"},
		"zero total w/ dur": {"-duration=1s", "-total=0"},
		"zero concurrency":  {"-concurrency=0"},
		"bad product":       {"-product-id=0"},
		"bad quantity":      {"-quantity=-1"},
		"empty tag":         {"-user-tag= "},
		"bad mode":          {"-mode=burst"},
		"unknown flag":      {"-addr=localhost:50051"},
	}
	for name, args := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, err := parseConfig(args); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestDispatchJobs(t *testing.T) {
	drain := func(cfg config) int {
		jobs := make(chan int, 4)
		go dispatchJobs(jobs, cfg)
		n := 0
		for range jobs {
			n++
		}
		return n
	}

	if got := drain(config{total: 7}); got != 7 {
		t.Fatalf("count mode dispatched %d jobs", got)
	}
	if got := drain(config{duration: time.Second, total: 3, totalSet: true}); got != 3 {
		t.Fatalf("capped duration mode dispatched %d jobs", got)
	}
}

func TestCollectorAndReport(t *testing.T) {
	col := newCollector()
	col.record(scenarioStep, 10*time.Millisecond, 0, true)
	col.record(scenarioStep, 30*time.Millisecond, 0, false)
	col.record("PlaceOrder", 5*time.Millisecond, http.StatusCreated, true)
	col.record("PlaceOrder", 7*time.Millisecond, 0, false)

	result := col.buildReport(time.Now(), 2*time.Second)
	if result.TotalScenarios != 2 || result.FailedScenarios != 1 || result.ErrorRate != 0.5 {
		t.Fatalf("unexpected report: %+v", result)
	}
	if result.RPS != 1 {
		t.Fatalf("rps = %f", result.RPS)
	}
	place := result.Steps["PlaceOrder"]
	if place.Codes["201"] != 1 || place.Codes["transport_error"] != 1 {
		t.Fatalf("codes = %v", place.Codes)
	}
	if result.ScenarioLatencyMs.Max != 30 || result.ScenarioLatencyMs.Min != 10 {
		t.Fatalf("latency = %+v", result.ScenarioLatencyMs)
	}
}

func TestLatencyHelpers(t *testing.T) {
	if got := percentile([]float64{1, 2, 3, 4}, 50); got != 2.5 {
		t.Fatalf("p50 = %f", got)
	}
	if got := percentile([]float64{9}, 99); got != 9 {
		t.Fatalf("single p99 = %f", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty p50 = %f", got)
	}
	if (buildLatencySummary(nil) != latencySummary{}) {
		t.Fatal("empty summary must be zero")
	}
	if ratio(1, 0) != 0 || ratio(1, 4) != 0.25 {
		t.Fatal("unexpected ratio")
	}
	if got := runTarget(config{duration: time.Minute}); got != "duration:1m0s" {
		t.Fatalf("runTarget = %s", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	if err := writeJSONReport("../escape.json", report{}); err == nil {
		t.Fatal("expected error for path outside current directory")
	}
	if err := writeJSONReport(".", report{}); err == nil {
		t.Fatal("expected error for directory path")
	}

	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()

	if err := writeJSONReport("report.json", report{TotalScenarios: 3}); err != nil {
		t.Fatalf("write report: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded report
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.TotalScenarios != 3 {
		t.Fatalf("decoded = %+v, err = %v", decoded, err)
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, report{
		TotalScenarios: 2,
		Steps: map[string]stepReport{
			scenarioStep:   {Calls: 2},
			"UpdateStatus": {Calls: 2},
			"PlaceOrder":   {Calls: 2},
		},
	}, config{mode: modePlaceUpdate, total: 2})

	out := buf.String()
	if !strings.Contains(out, "mode=place-update run=count:2") {
		t.Fatalf("missing header: %s", out)
	}
	if strings.Index(out, "PlaceOrder:") > strings.Index(out, "UpdateStatus:") {
		t.Fatalf("steps must be sorted: %s", out)
	}
	if strings.Contains(out, "scenario: calls") {
		t.Fatalf("scenario must not be listed as a step: %s", out)
	}
}

// fakeAPI эмулирует сервер: вход, оформление, смену статуса и удаление.
type fakeAPI struct {
	mu       sync.Mutex
	orders   map[string]string
	seq      atomic.Int64
	failFrom int64
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/auth/sign-in":
		var req struct {
			Credential string `json:"credential"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-" + req.Credential})
		return
	case !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-"):
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/orders":
		if r.Header.Get(idempotencyHeader) == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n := f.seq.Add(1)
		if f.failFrom > 0 && n >= f.failFrom {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id := "order-" + strconv.FormatInt(n, 10)
		f.mu.Lock()
		f.orders[id] = "ordered"
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"order": map[string]string{"id": id}})
	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/api/v1/orders/"):
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/v1/orders/"):
		if r.URL.Query().Get("confirm") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestRun_AllModes(t *testing.T) {
	for _, mode := range []loadMode{modePlace, modePlaceUpdate, modePlaceDelete} {
		t.Run(string(mode), func(t *testing.T) {
			srv := httptest.NewServer(&fakeAPI{orders: map[string]string{}})
			defer srv.Close()

			cfg := config{baseURL: srv.URL, total: 6, concurrency: 2, timeout: time.Second,
				mode: mode, productID: 1, quantity: 2, userTag: "t"}
			result, err := run(context.Background(), cfg, srv.Client())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if result.TotalScenarios != 6 || result.FailedScenarios != 0 {
				t.Fatalf("unexpected result: %+v", result)
			}
			if result.Steps["SignIn"].Calls != 2 {
				t.Fatalf("sign-ins = %d", result.Steps["SignIn"].Calls)
			}
			_, hasUpdate := result.Steps["UpdateStatus"]
			_, hasDelete := result.Steps["DeleteOrder"]
			if hasUpdate != (mode != modePlace) || hasDelete != (mode == modePlaceDelete) {
				t.Fatalf("unexpected steps for %s: %v", mode, result.Steps)
			}
		})
	}
}

func TestRun_RecordsFailures(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{orders: map[string]string{}, failFrom: 3})
	defer srv.Close()

	cfg := config{baseURL: srv.URL, total: 4, concurrency: 1, timeout: time.Second,
		mode: modePlaceDelete, productID: 1, quantity: 1, userTag: "t"}
	result, err := run(context.Background(), cfg, srv.Client())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.FailedScenarios != 2 || result.Steps["PlaceOrder"].Codes["500"] != 2 {
		t.Fatalf("unexpected failures: %+v", result)
	}
}

func TestRun_SignInFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := config{baseURL: srv.URL, total: 1, concurrency: 1, timeout: time.Second,
		mode: modePlace, productID: 1, quantity: 1, userTag: "t"}
	if _, err := run(context.Background(), cfg, srv.Client()); err == nil {
		t.Fatal("expected sign-in error")
	}
}
