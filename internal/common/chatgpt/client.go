// internal/common/chatgpt/client.go
package chatgpt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "shadowquery-workers/internal/common/errors"
	httpclient "shadowquery-workers/internal/common/http"
	"shadowquery-workers/internal/models"
)

const (
	sessionPath      = "/api/auth/session"
	conversationPath = "/backend-api/conversation/"

	maxConversationBytes = 64 << 20
)

// Doer is the subset of the retrying HTTP client the fetcher needs.
type Doer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client reads session credentials and conversation records from the chat
// web backend.
type Client struct {
	baseURL   string
	deviceID  string
	userAgent string
	http      Doer
	maxBody   int64
}

func NewClient(baseURL, userAgent string, doer Doer) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		deviceID:  uuid.NewString(),
		userAgent: userAgent,
		http:      doer,
		maxBody:   maxConversationBytes,
	}
}

// DeviceID is the oai-device-id sent with every conversation request.
func (c *Client) DeviceID() string {
	return c.deviceID
}

type sessionResponse struct {
	AccessToken string `json:"accessToken"`
	Expires     string `json:"expires"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// FetchSession exchanges a browser session cookie for an access token.
func (c *Client) FetchSession(ctx context.Context, cookie string) (*models.Session, error) {
	if strings.TrimSpace(cookie) == "" {
		return nil, apperrors.NewNotLoggedInError("no session cookie supplied")
	}

	req, err := http.NewRequest(http.MethodGet, c.baseURL+sessionPath, nil)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Cookie", cookie)
	req.Header.Set("Accept", "application/json")
	c.setUserAgent(req)

	body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	var sr sessionResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, apperrors.NewFetchFailedError(fmt.Errorf("failed to decode session: %w", err))
	}
	if sr.AccessToken == "" {
		return nil, apperrors.NewNotLoggedInError("session has no access token")
	}

	session := &models.Session{
		AccessToken: sr.AccessToken,
		UserID:      sr.User.ID,
		Email:       sr.User.Email,
	}
	if sr.Expires != "" {
		if exp, err := time.Parse(time.RFC3339, sr.Expires); err == nil {
			session.Expires = exp
		}
	}
	if session.IsExpired() {
		return nil, apperrors.NewTokenExpiredError(fmt.Sprintf("session expired at %s", sr.Expires))
	}
	return session, nil
}

// FetchConversation downloads the raw conversation record.
func (c *Client) FetchConversation(ctx context.Context, accessToken, conversationID string) ([]byte, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, apperrors.NewNoConversationError()
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, apperrors.NewNotLoggedInError("no access token supplied")
	}

	req, err := http.NewRequest(http.MethodGet, c.baseURL+conversationPath+url.PathEscape(conversationID), nil)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("oai-device-id", c.deviceID)
	req.Header.Set("Accept", "application/json")
	c.setUserAgent(req)

	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, statusError(resp, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, apperrors.NewFetchFailedError(fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(body)) > c.maxBody {
		return nil, apperrors.NewFetchFailedError(fmt.Errorf("response body exceeds %d bytes", c.maxBody))
	}
	return body, nil
}

func statusError(resp *http.Response, body []byte) error {
	detail := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperrors.NewTokenExpiredError(detail)
	case http.StatusForbidden:
		return apperrors.NewAuthFailedError(detail)
	case http.StatusTooManyRequests:
		ra, _ := httpclient.RetryAfter(resp)
		return apperrors.NewRateLimitedError(ra)
	default:
		return apperrors.NewFetchFailedError(fmt.Errorf("unexpected %s", detail))
	}
}

func (c *Client) setUserAgent(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
