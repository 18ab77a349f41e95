// Command loadtest seeds a running prgate instance and drives a read-heavy
// request mix against it with vegeta.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

type seeded struct {
	developers []string
	reviewers  []string
	prs        []string
}

type client struct {
	host string
	http *http.Client
}

func (c *client) postJSON(path, user string, body, out any) (int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, c.host+path, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *client) createUser(adminID, email string, role string) (string, error) {
	var u struct {
		ID string `json:"id"`
	}
	status, err := c.postJSON("/users", adminID, map[string]string{"email": email, "name": email, "role": role}, &u)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("create user %s: status %d", email, status)
	}
	return u.ID, nil
}

func seed(c *client, adminID string, devs, reviewers, prsPerDev int, logger *slog.Logger) (*seeded, error) {
	s := &seeded{}
	run := time.Now().UnixNano()

	for i := 0; i < devs; i++ {
		id, err := c.createUser(adminID, fmt.Sprintf("dev-%d-%d@load.test", run, i), "DEVELOPER")
		if err != nil {
			return nil, err
		}
		s.developers = append(s.developers, id)
	}
	for i := 0; i < reviewers; i++ {
		id, err := c.createUser(adminID, fmt.Sprintf("rev-%d-%d@load.test", run, i), "REVIEWER")
		if err != nil {
			return nil, err
		}
		s.reviewers = append(s.reviewers, id)
	}

	for _, dev := range s.developers {
		for j := 0; j < prsPerDev; j++ {
			var pr struct {
				ID string `json:"id"`
			}
			status, err := c.postJSON("/pull-requests", dev, map[string]any{
				"title":     fmt.Sprintf("Load PR %d by %s", j, dev),
				"checklist": []map[string]any{{"label": "tests", "done": true}},
			}, &pr)
			if err != nil {
				return nil, err
			}
			if status != http.StatusCreated {
				logger.Warn("create PR failed", "status", status)
				continue
			}

			rev := s.reviewers[rand.IntN(len(s.reviewers))]
			if status, err := c.postJSON("/pull-requests/"+pr.ID+"/reviewers", dev, map[string]any{"user_ids": []string{rev}}, nil); err != nil || status != http.StatusOK {
				logger.Warn("assign reviewer failed", "status", status, "error", err)
			}
			s.prs = append(s.prs, pr.ID)
		}
	}

	logger.Info("seed completed", "developers", len(s.developers), "reviewers", len(s.reviewers), "prs", len(s.prs))
	return s, nil
}

func header(user string) http.Header {
	return http.Header{
		"Accept":       {"application/json"},
		"Content-Type": {"application/json"},
		"X-User-ID":    {user},
	}
}

// targeter mixes readiness reads, listings, detail reads and comments.
func targeter(host string, s *seeded) vegeta.Targeter {
	return func(t *vegeta.Target) error {
		pr := s.prs[rand.IntN(len(s.prs))]
		dev := s.developers[rand.IntN(len(s.developers))]
		r := rand.Float64()

		t.Body = nil
		t.Header = header(dev)
		switch {
		case r < 0.60:
			t.Method = http.MethodGet
			t.URL = host + "/pull-requests/" + pr + "/deployment"
		case r < 0.85:
			t.Method = http.MethodGet
			t.URL = host + "/pull-requests?status=OPEN&limit=20"
		case r < 0.95:
			t.Method = http.MethodGet
			t.URL = host + "/pull-requests/" + pr
		default:
			body, err := json.Marshal(map[string]string{"body": "load comment"})
			if err != nil {
				return err
			}
			t.Method = http.MethodPost
			t.URL = host + "/pull-requests/" + pr + "/comments"
			t.Body = body
		}
		return nil
	}
}

func main() {
	host := flag.String("host", "http://localhost:8080", "target base URL")
	adminID := flag.String("admin", "", "id of an ADMIN user used for seeding")
	rps := flag.Int("rps", 50, "requests per second")
	duration := flag.Duration("duration", time.Minute, "attack duration")
	devs := flag.Int("developers", 10, "developers to seed")
	reviewers := flag.Int("reviewers", 5, "reviewers to seed")
	prsPerDev := flag.Int("prs", 5, "PRs per developer")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *adminID == "" {
		logger.Error("-admin is required")
		os.Exit(2)
	}

	c := &client{host: *host, http: &http.Client{Timeout: 10 * time.Second}}
	s, err := seed(c, *adminID, *devs, *reviewers, *prsPerDev, logger)
	if err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	if len(s.prs) == 0 {
		logger.Error("nothing seeded")
		os.Exit(1)
	}

	rate := vegeta.Rate{Freq: *rps, Per: time.Second}
	attacker := vegeta.NewAttacker()

	var metrics vegeta.Metrics
	logger.Info("starting attack", "host", *host, "rps", *rps, "duration", *duration)
	for res := range attacker.Attack(targeter(*host, s), rate, *duration, "prgate") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Println("=== Results ===")
	fmt.Printf("Requests: %d\n", metrics.Requests)
	fmt.Printf("Success rate: %.4f%%\n", metrics.Success*100)
	fmt.Printf("Latency mean: %s\n", metrics.Latencies.Mean)
	fmt.Printf("Latency P95: %s\n", metrics.Latencies.P95)
	fmt.Printf("Latency P99: %s\n", metrics.Latencies.P99)
	for code, n := range metrics.StatusCodes {
		fmt.Printf("Status %s: %d\n", code, n)
	}
}
