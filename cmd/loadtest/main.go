package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type loadMode string

const (
	modePlace       loadMode = "place"
	modePlaceUpdate loadMode = "place-update"
	modePlaceDelete loadMode = "place-update-delete"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	productID   int64
	quantity    int
	userTag     string
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var (
		cfg           config
		modeValue     string
		timeoutValue  string
		durationValue string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "BlackStore API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration only used when set explicitly")
	fs.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent workers, each signs in as its own user")
	fs.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-update | place-update-delete")
	fs.Int64Var(&cfg.productID, "product-id", 1, "catalog product id to order")
	fs.IntVar(&cfg.quantity, "quantity", 1, "order quantity")
	fs.StringVar(&cfg.userTag, "user-tag", "load", "dev credential prefix for worker users")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	if cfg.mode, err = parseMode(modeValue); err != nil {
		return cfg, err
	}

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.productID <= 0:
		return cfg, errors.New("product-id must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case strings.TrimSpace(cfg.userTag) == "":
		return cfg, errors.New("user-tag is required")
	case strings.TrimSpace(cfg.baseURL) == "":
		return cfg, errors.New("url is required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modePlace, modePlaceUpdate, modePlaceDelete:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	result, err := run(context.Background(), cfg, &http.Client{})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// run логинит по пользователю на воркер и гоняет сценарии до исчерпания задач.
func run(ctx context.Context, cfg config, httpClient *http.Client) (report, error) {
	client := newAPIClient(cfg.baseURL, httpClient)
	col := newCollector()
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	tokens := make([]string, cfg.concurrency)
	for i := range tokens {
		_, err := timed(ctx, cfg.timeout, col, "SignIn", func(ctx context.Context) (int, error) {
			token, code, err := client.signIn(ctx, fmt.Sprintf("%s-%s-%d", cfg.userTag, runID, i))
			tokens[i] = token
			return code, err
		})
		if err != nil {
			return report{}, fmt.Errorf("sign in worker %d: %w", i, err)
		}
	}

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for worker := 0; worker < cfg.concurrency; worker++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(ctx, client, cfg, token, id, runID, col)
			}
		}(tokens[worker])
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt)), nil
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runScenario(ctx context.Context, client *apiClient, cfg config, token string, index int, runID string, col *collector) (err error) {
	start := time.Now()
	defer func() {
		col.record(scenarioStep, time.Since(start), 0, err == nil)
	}()

	var orderID string
	key := fmt.Sprintf("lt-place-%s-%d", runID, index)
	if _, err = timed(ctx, cfg.timeout, col, "PlaceOrder", func(ctx context.Context) (int, error) {
		var code int
		var callErr error
		orderID, code, callErr = client.placeOrder(ctx, token, cfg.productID, cfg.quantity, key)
		return code, callErr
	}); err != nil || cfg.mode == modePlace {
		return err
	}

	if _, err = timed(ctx, cfg.timeout, col, "UpdateStatus", func(ctx context.Context) (int, error) {
		return client.updateStatus(ctx, token, orderID, "processing")
	}); err != nil || cfg.mode == modePlaceUpdate {
		return err
	}

	_, err = timed(ctx, cfg.timeout, col, "DeleteOrder", func(ctx context.Context) (int, error) {
		return client.deleteOrder(ctx, token, orderID)
	})
	return err
}

// timed выполняет шаг с таймаутом и записывает его в collector.
func timed(ctx context.Context, timeout time.Duration, col *collector, step string, fn func(context.Context) (int, error)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	code, err := fn(ctx)
	col.record(step, time.Since(start), code, err == nil)
	return code, err
}
