// Package leonardo talks to a Leonardo-compatible image generation REST API:
// jobs are submitted, then polled until they reach a terminal state.
package leonardo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spritegen/internal/domain"
	"spritegen/internal/infra"
)

const (
	DefaultBaseURL = "https://cloud.leonardo.ai/api/rest/v1"
	// DefaultModelID is Leonardo Diffusion XL.
	DefaultModelID = "1e60896f-3c26-4296-8ecc-53e2afecc132"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("leonardo: api key is required")

// Options configures the client. Nothing is read from the environment.
type Options struct {
	APIKey         string
	BaseURL        string
	ModelID        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client submits generation jobs and reads their status.
type Client struct {
	apiKey     string
	baseURL    string
	modelID    string
	httpClient *http.Client
	logger     *infra.Logger
}

type generationRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ModelID        string `json:"modelId"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	NumImages      int    `json:"num_images"`
	PresetStyle    string `json:"presetStyle,omitempty"`
	Public         bool   `json:"public"`
	Tiling         bool   `json:"tiling"`
}

type generationResponse struct {
	SDGenerationJob struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

type statusResponse struct {
	GenerationsByPK *struct {
		ID              string `json:"id"`
		Status          string `json:"status"`
		GeneratedImages []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("leonardo: invalid base url: %w", err)
	}
	modelID := strings.TrimSpace(opts.ModelID)
	if modelID == "" {
		modelID = DefaultModelID
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		modelID:    modelID,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit creates a generation job for req and returns its identifier.
func (c *Client) Submit(ctx context.Context, req domain.AssetRequest) (string, error) {
	if !c.HasCredentials() {
		return "", fmt.Errorf("%w: %w", domain.ErrSubmission, ErrMissingAPIKey)
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.modelID
	}
	payload := generationRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		ModelID:        modelID,
		Width:          req.GenerateWidth,
		Height:         req.GenerateHeight,
		NumImages:      1,
		PresetStyle:    req.Style,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", domain.ErrSubmission, err)
	}
	raw, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/generations", body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSubmission, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: %s", domain.ErrSubmission, describeFailure(status, raw))
	}
	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrSubmission, err)
	}
	id := strings.TrimSpace(decoded.SDGenerationJob.GenerationID)
	if id == "" {
		return "", fmt.Errorf("%w: response carries no generation id", domain.ErrSubmission)
	}
	c.logger.Debug().Str("asset", req.Name).Str("job_id", id).Msg("leonardo: generation submitted")
	return id, nil
}

// Poll reads the current state of a job once.
func (c *Client) Poll(ctx context.Context, jobID string) (domain.GenerationJob, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.GenerationJob{}, fmt.Errorf("%w: job id is required", domain.ErrPoll)
	}
	raw, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/generations/"+url.PathEscape(jobID), nil)
	if err != nil {
		return domain.GenerationJob{}, fmt.Errorf("%w: %v", domain.ErrPoll, err)
	}
	if status < 200 || status >= 300 {
		return domain.GenerationJob{}, fmt.Errorf("%w: %s", domain.ErrPoll, describeFailure(status, raw))
	}
	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.GenerationJob{}, fmt.Errorf("%w: decode response: %v", domain.ErrPoll, err)
	}
	if decoded.GenerationsByPK == nil {
		return domain.GenerationJob{}, fmt.Errorf("%w: response carries no generation", domain.ErrPoll)
	}
	jobStatus, ok := mapStatus(decoded.GenerationsByPK.Status)
	if !ok {
		return domain.GenerationJob{}, fmt.Errorf("%w: empty status for %s", domain.ErrPoll, jobID)
	}
	job := domain.GenerationJob{ID: jobID, Status: jobStatus}
	for _, img := range decoded.GenerationsByPK.GeneratedImages {
		job.ResultURLs = append(job.ResultURLs, img.URL)
	}
	return job, nil
}

func mapStatus(s string) (domain.JobStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", false
	case "PENDING":
		return domain.JobStatusPending, true
	case "COMPLETE":
		return domain.JobStatusComplete, true
	case "FAILED":
		return domain.JobStatusFailed, true
	default:
		return domain.JobStatusRunning, true
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func describeFailure(status int, raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		if msg := strings.TrimSpace(detail.Error + " " + detail.Message); msg != "" {
			return fmt.Sprintf("status %d: %s", status, msg)
		}
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 256 {
		text = text[:256]
	}
	return fmt.Sprintf("status %d: %s", status, text)
}
