package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hookscore/internal/domain/signature"
	"github.com/okian/hookscore/internal/domain/types"
	"github.com/okian/hookscore/pkg/logger"
)

// Submission results.
const (
	resultSaved     = "saved"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
)

// client signs and sends deliveries.
type client struct {
	http     *http.Client
	baseURL  string
	verifier signature.Verifier
}

func newClient(cfg *Config) *client {
	return &client{
		http:     &http.Client{Timeout: cfg.Timeout},
		baseURL:  cfg.BaseURL,
		verifier: signature.NewVerifier(cfg.Secret),
	}
}

type ingestResponse struct {
	Status  string `json:"status"`
	EventID string `json:"eventId"`
}

// send posts one delivery and classifies the response.
func (c *client) send(ctx context.Context, d Delivery) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/webhooks/github", bytes.NewReader(d.Body))
	if err != nil {
		return resultFailed, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Delivery", d.ID)
	req.Header.Set("X-GitHub-Event", d.Event)
	req.Header.Set(signature.Header, c.verifier.Sign(d.Body))

	resp, err := c.http.Do(req)
	if err != nil {
		return resultFailed, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resultFailed, err
	}
	if resp.StatusCode != http.StatusOK {
		return resultFailed, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	var out ingestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return resultFailed, err
	}
	if out.Status == resultDuplicate {
		return resultDuplicate, nil
	}
	return resultSaved, nil
}

func (c *client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *client) leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	var out []types.LeaderboardEntry
	err := c.getJSON(ctx, fmt.Sprintf("/contributors?limit=%d", limit), &out)
	return out, err
}

func (c *client) stats(ctx context.Context) (types.Stats, error) {
	var out types.Stats
	err := c.getJSON(ctx, "/stats", &out)
	return out, err
}

// submit sends deliveries with a pool of workers.
func submit(ctx context.Context, cfg *Config, c *client, deliveries []Delivery, stats *Stats) {
	log := logger.Named("replay")
	log.Info(ctx, "submitting deliveries", logger.Int("count", len(deliveries)), logger.Int("workers", cfg.Workers))

	var saved, duplicate, failed, submitted atomic.Int64
	ch := make(chan Delivery, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range ch {
				start := time.Now()
				result, err := c.send(ctx, d)
				submitted.Add(1)
				switch result {
				case resultSaved:
					saved.Add(1)
				case resultDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
					log.Warn(ctx, "delivery failed", logger.String("deliveryId", d.ID), logger.Error(err))
				}
				if cfg.Verbose {
					log.Info(ctx, "delivery sent",
						logger.String("deliveryId", d.ID),
						logger.String("event", d.Event),
						logger.String("result", result),
						logger.Duration("latency", time.Since(start)),
					)
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, d := range deliveries {
			select {
			case <-ctx.Done():
				return
			case ch <- d:
			}
		}
	}()
	wg.Wait()

	stats.Submitted += int(submitted.Load())
	stats.Saved += int(saved.Load())
	stats.Duplicates += int(duplicate.Load())
	stats.Failed += int(failed.Load())
}
