package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/domain"
)

// Client posts submissions to the grading service over HTTP. It never
// retries on its own; the session controller owns the retry decision. The
// payload's session id lets the server dedupe a resent submission whose
// first delivery was processed but never acknowledged.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log.With().Str("component", "grading_client").Logger(),
	}
}

func (c *Client) Submit(ctx context.Context, quizID string, payload domain.SubmissionPayload) (domain.GradedResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.GradedResult{}, fmt.Errorf("marshal submission: %w", err)
	}

	url := fmt.Sprintf("%s/quizzes/%s/submissions", c.base, quizID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.GradedResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("session_id", payload.SessionID).Msg("grading request failed")
		return domain.GradedResult{}, fmt.Errorf("grading service unreachable: %v: %w", err, domain.ErrSubmissionFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error().Int("status", resp.StatusCode).Str("session_id", payload.SessionID).Msg("grading service rejected submission")
		return domain.GradedResult{}, fmt.Errorf("grading service returned %s: %w", resp.Status, domain.ErrSubmissionFailed)
	}

	var result domain.GradedResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.GradedResult{}, fmt.Errorf("decode graded result: %v: %w", err, domain.ErrSubmissionFailed)
	}
	return result, nil
}
