package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RESTConfig configures a REST tracker.
type RESTConfig struct {
	BaseURL string
	// RequestsPerSecond bounds outgoing calls. Zero means 1.
	RequestsPerSecond float64
	Timeout           time.Duration
	Tag               string
	HTTPClient        *http.Client
}

// REST is a Tracker backed by an HTTP tracking service.
//
//	POST {base}/events/          -> {"graceid": "..."}
//	POST {base}/events/{id}/log/
type REST struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	tag     string
	logger  *slog.Logger
}

type createRequest struct {
	Group        string `json:"group"`
	Pipeline     string `json:"pipeline"`
	Filename     string `json:"filename"`
	FileContents []byte `json:"filecontents"`
	Instrument   string `json:"instrument"`
}

type createResponse struct {
	GraceID string `json:"graceid"`
}

type logRequest struct {
	Message string `json:"message"`
	TagName string `json:"tagname"`
}

// NewREST validates the base URL and returns a tracker.
func NewREST(cfg RESTConfig) (*REST, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("tracking url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("tracking url %q: scheme must be http or https", cfg.BaseURL)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	tag := cfg.Tag
	if tag == "" {
		tag = DefaultTag
	}

	return &REST{
		base:    base,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		tag:     tag,
		logger:  slog.Default().With("component", "tracking"),
	}, nil
}

// Register creates a tracking entry and returns its id.
func (t *REST) Register(ctx context.Context, r Registration) (string, error) {
	pipeline := r.Pipeline
	if pipeline == "" {
		pipeline = DefaultPipeline
	}
	body := createRequest{
		Group:        r.Group,
		Pipeline:     pipeline,
		Filename:     r.Filename,
		FileContents: r.Metadata,
		Instrument:   strings.Join(r.Instruments, ","),
	}

	var out createResponse
	if err := t.post(ctx, "/events/", body, &out); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	if out.GraceID == "" {
		return "", ErrEmptyID
	}
	t.logger.Info("registered injection", "id", out.GraceID, "group", r.Group)
	return out.GraceID, nil
}

// Annotate appends a log message to an entry.
func (t *REST) Annotate(ctx context.Context, id, text string) error {
	path := "/events/" + url.PathEscape(id) + "/log/"
	if err := t.post(ctx, path, logRequest{Message: text, TagName: t.tag}, nil); err != nil {
		return fmt.Errorf("annotate %s: %w", id, err)
	}
	return nil
}

func (t *REST) post(ctx context.Context, path string, in, out any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base.String()+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx reply from the tracking service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tracking service returned %d", e.Code)
	}
	return fmt.Sprintf("tracking service returned %d: %s", e.Code, e.Body)
}
