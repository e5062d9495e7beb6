package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is the item-count estimate returned by the vision collaborator.
// Confidence is 0-100.
type Result struct {
	ItemCount  int64 `json:"item_count"`
	Confidence int64 `json:"confidence"`
}

// Analyzer estimates item counts from pallet photos. The core treats the
// confidence as an opaque score; callers decide what to do below threshold.
type Analyzer interface {
	Analyze(ctx context.Context, imageRefs []string) (Result, error)
}

// HTTPAnalyzer calls an external counting service.
type HTTPAnalyzer struct {
	URL    string
	Client *http.Client
}

func NewHTTPAnalyzer(url string) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, imageRefs []string) (Result, error) {
	if a.URL == "" {
		return Result{}, fmt.Errorf("vision url is not configured")
	}

	body, err := json.Marshal(map[string]any{"images": imageRefs})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("vision service returned %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode vision response: %w", err)
	}
	if result.Confidence < 0 || result.Confidence > 100 {
		return Result{}, fmt.Errorf("vision confidence out of range: %d", result.Confidence)
	}
	return result, nil
}

// Disabled is the no-op analyzer used when no vision service is configured.
type Disabled struct{}

func (Disabled) Analyze(context.Context, []string) (Result, error) {
	return Result{}, fmt.Errorf("vision analysis is disabled")
}
