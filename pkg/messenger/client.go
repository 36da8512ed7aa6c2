package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"msgdump/pkg/auth"
	errs "msgdump/pkg/errors"
	"msgdump/pkg/logger"
	"msgdump/pkg/retry"
)

// ResponseGuard is the anti-hijacking prefix mercury prepends to every
// JSON body. It must be stripped before decoding.
const ResponseGuard = "for (;;);"

// DefaultUserAgent is sent when the session bundle does not carry the
// browser's own user agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/44.0.2403.107 Safari/537.36"

// ThreadPage is one page of the conversation listing. Last is true when
// the remote returned fewer threads than requested, meaning the folder
// is exhausted.
type ThreadPage struct {
	Folder       Folder
	Offset       int
	Threads      []Thread
	Participants []Participant
	Last         bool
}

// HistoryPage is one page of a conversation's history. Records hold the
// raw message records exactly as received, newest chunk of the remaining
// history first within the page. Cursor addresses the next older page and
// End reports that the history is exhausted.
type HistoryPage struct {
	Records []json.RawMessage
	Cursor  Cursor
	End     bool
}

// Client talks to the mercury endpoints on behalf of one session bundle
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	bundle     *auth.Bundle
	baseURL    string
	logger     logger.Logger
	retrier    *retry.HTTPRetrier
}

// NewClient creates a new mercury API client
func NewClient(bundle *auth.Bundle, timeout time.Duration, log logger.Logger) *Client {
	// Use default logger if none provided
	if log == nil {
		log = logger.GetLogger()
	}

	userAgent := bundle.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	// Accept-Encoding is left to the transport so gzip decoding stays
	// automatic.
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"Origin":          BaseURL,
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.8",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
			"Content-Type":    "application/x-www-form-urlencoded",
			"Referer":         BaseURL + "/messages",
			"User-Agent":      userAgent,
			"Cookie":          bundle.Cookie,
		},
		bundle:  bundle,
		baseURL: BaseURL,
		logger:  log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// SetBaseURL points the client at a different host. Used by tests and
// proxy setups.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
}

// SetRetrier makes page and resource fetches retry transient failures
// with error-class backoff
func (c *Client) SetRetrier(retrier *retry.HTTPRetrier) {
	c.retrier = retrier
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	// Set all headers
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	// Log the request
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}

	// Log successful response
	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// postMercury sends one mercury form POST and decodes the reply. The
// session bundle's hidden fields are merged into every form.
func (c *Client) postMercury(ctx context.Context, endpoint string, form url.Values) (*Response, error) {
	for key, value := range c.bundle.FormFields() {
		form.Set(key, value)
	}
	encoded := form.Encode()

	fetch := func() (*Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
				Code:    0,
			}
		}

		resp, err := c.doRequest(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeNetwork,
				Message: fmt.Sprintf("failed to read response body: %v", err),
				Code:    resp.StatusCode,
			}
		}

		return c.decodeResponse(body, req.URL.String(), resp.StatusCode)
	}

	if c.retrier == nil {
		return fetch()
	}

	var response *Response
	err := c.retrier.WithContext(ctx).DoWithErrorType(func() error {
		var fetchErr error
		response, fetchErr = fetch()
		return fetchErr
	})
	return response, err
}

// decodeResponse strips the guard, decodes the envelope and surfaces a
// mercury-level rejection as an auth error
func (c *Client) decodeResponse(body []byte, requestURL string, status int) (*Response, error) {
	stripped := StripGuard(body)

	var response Response
	if err := json.Unmarshal(stripped, &response); err != nil {
		// Create a preview of the body for debugging
		bodyPreview := string(stripped)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse mercury response", map[string]interface{}{
			"url":          requestURL,
			"status":       status,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse response JSON: %v", err),
			Code:    status,
		}
	}

	if response.Error != nil {
		summary := response.ErrorSummary
		if summary == "" {
			summary = "request rejected"
		}
		c.logger.WarnWithFields("mercury rejected the request", map[string]interface{}{
			"url":         requestURL,
			"error_code":  *response.Error,
			"summary":     summary,
			"description": response.ErrorDescription,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: summary,
			Code:    *response.Error,
		}
	}

	return &response, nil
}

// StripGuard removes the anti-hijacking prefix from a mercury body
func StripGuard(body []byte) []byte {
	return bytes.TrimPrefix(body, []byte(ResponseGuard))
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		if resp.StatusCode >= 400 {
			c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
				"status": resp.StatusCode,
				"url":    resp.Request.URL.String(),
			})
			return &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}
}

// FetchThreadPage fetches one page of the conversation listing for a folder
func (c *Client) FetchThreadPage(ctx context.Context, folder Folder, offset, limit int) (*ThreadPage, error) {
	if limit <= 0 {
		limit = ThreadListPageSize
	}

	c.logger.DebugWithFields("fetching thread listing page", map[string]interface{}{
		"folder": string(folder),
		"offset": offset,
		"limit":  limit,
	})

	response, err := c.postMercury(ctx, ThreadListEndpoint, ThreadListForm(folder, offset, limit))
	if err != nil {
		c.logger.ErrorWithFields("failed to fetch thread listing", map[string]interface{}{
			"folder": string(folder),
			"offset": offset,
			"error":  err.Error(),
		})
		return nil, err
	}

	page := &ThreadPage{
		Folder:       folder,
		Offset:       offset,
		Threads:      response.Payload.Threads,
		Participants: response.Payload.Participants,
		Last:         len(response.Payload.Threads) < limit,
	}

	c.logger.DebugWithFields("fetched thread listing page", map[string]interface{}{
		"folder":       string(folder),
		"offset":       offset,
		"threads":      len(page.Threads),
		"participants": len(page.Participants),
		"last":         page.Last,
	})

	return page, nil
}

// FetchHistoryPage fetches one page of a conversation's history. The
// returned cursor advances the offset by pageSize and pins the timestamp
// to the oldest record of this page, which is how the remote walks
// backwards through history.
func (c *Client) FetchHistoryPage(ctx context.Context, thread ThreadRef, cursor Cursor, pageSize int) (*HistoryPage, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	c.logger.DebugWithFields("fetching history page", map[string]interface{}{
		"thread_id": thread.ID,
		"kind":      string(thread.Kind),
		"offset":    cursor.Offset,
		"page_size": pageSize,
	})

	response, err := c.postMercury(ctx, ThreadInfoEndpoint, HistoryForm(thread, cursor, pageSize))
	if err != nil {
		c.logger.ErrorWithFields("failed to fetch history page", map[string]interface{}{
			"thread_id": thread.ID,
			"offset":    cursor.Offset,
			"error":     err.Error(),
		})
		return nil, err
	}

	records := response.Payload.Actions
	page := &HistoryPage{
		Records: records,
		// An empty page without the end marker still terminates the walk
		End: response.Payload.EndOfHistory != nil || len(records) == 0,
	}

	if len(records) > 0 {
		oldest, err := DecodeAction(records[0])
		if err != nil {
			if !page.End {
				return nil, &errs.Error{
					Type:    errs.ErrorTypeParsing,
					Message: fmt.Sprintf("cannot read the oldest record's timestamp: %v", err),
					Code:    0,
				}
			}
		} else {
			page.Cursor = Cursor{
				Offset:    cursor.Offset + pageSize,
				Timestamp: oldest.Timestamp,
			}
		}
	}

	c.logger.DebugWithFields("fetched history page", map[string]interface{}{
		"thread_id": thread.ID,
		"offset":    cursor.Offset,
		"records":   len(page.Records),
		"end":       page.End,
	})

	return page, nil
}

// DownloadResource downloads one attachment resource. Media URLs point at
// CDN hosts; the session cookie never goes there.
func (c *Client) DownloadResource(ctx context.Context, resourceURL string) ([]byte, error) {
	c.logger.DebugWithFields("downloading resource", map[string]interface{}{
		"url": resourceURL,
	})

	if c.retrier == nil {
		return c.fetchResource(ctx, resourceURL)
	}

	var data []byte
	err := c.retrier.WithContext(ctx).DoWithErrorType(func() error {
		var fetchErr error
		data, fetchErr = c.fetchResource(ctx, resourceURL)
		return fetchErr
	})
	return data, err
}

// fetchResource performs one resource GET
func (c *Client) fetchResource(ctx context.Context, resourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resourceURL, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Code:    0,
		}
	}
	req.Header.Set("User-Agent", c.headers["User-Agent"])

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("failed to download resource", map[string]interface{}{
			"url":   resourceURL,
			"error": err.Error(),
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone:
		c.logger.WarnWithFields("resource URL has expired", map[string]interface{}{
			"url":    resourceURL,
			"status": resp.StatusCode,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeExpiredURL,
			Message: "resource URL has expired, re-dump the conversation to refresh it",
			Code:    resp.StatusCode,
		}
	default:
		if err := c.checkResponseStatus(resp); err != nil {
			return nil, err
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.ErrorWithFields("failed to read resource data", map[string]interface{}{
			"url":   resourceURL,
			"error": err.Error(),
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to download resource: %v", err),
			Code:    0,
		}
	}

	c.logger.DebugWithFields("downloaded resource", map[string]interface{}{
		"url":      resourceURL,
		"size":     len(data),
		"duration": time.Since(start),
	})

	return data, nil
}
