package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hap/queue-service/internal/config"
	"hap/queue-service/internal/models"
)

// waiting-room is the display client. It polls the queue service's change
// feed and prints each new announcement exactly once; an unchanged record
// means nothing new happened and nothing is shown.
func main() {
	cfg := config.Load()

	baseURL := os.Getenv("QUEUE_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 5 * time.Second}
	log.Printf("waiting-room polling %s every %v", baseURL, cfg.FeedPollInterval)
	run(ctx, client, baseURL, cfg.FeedPollInterval)
}

func run(ctx context.Context, client *http.Client, baseURL string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last models.CallRecord
	var seen bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			record, present, err := fetchLast(ctx, client, baseURL)
			if err != nil {
				log.Printf("feed poll error: %v", err)
				continue
			}
			if !present {
				continue
			}
			if seen && record == last {
				continue
			}
			last = record
			seen = true
			fmt.Println(render(record))
		}
	}
}

func fetchLast(ctx context.Context, client *http.Client, baseURL string) (models.CallRecord, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/feed/last", nil)
	if err != nil {
		return models.CallRecord{}, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.CallRecord{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return models.CallRecord{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return models.CallRecord{}, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var record models.CallRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return models.CallRecord{}, false, err
	}
	return record, true, nil
}

func render(record models.CallRecord) string {
	if record.Kind == models.CallRecall {
		return "Re-llamando: " + record.Message
	}
	return record.Message
}
