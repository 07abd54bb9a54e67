// internal/workers/conversation/extract-shadow-queries/handler_test.go
package extractshadowqueries

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shadowquery-workers/internal/cache"
	apperrors "shadowquery-workers/internal/common/errors"
	"shadowquery-workers/internal/common/logger"
	"shadowquery-workers/internal/extractor"
	"shadowquery-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

const searchConversation = `{
  "conversation_id": "conv-1",
  "model": "gpt-4o",
  "mapping": {
    "u1": {"message": {"author": {"role": "user"}, "content": {"content_type": "text", "parts": ["best trail shoes"]}}},
    "a1": {"parent": "u1", "message": {"author": {"role": "assistant"}, "metadata": {
      "search_model_queries": {"queries": ["trail running shoes 2026"]},
      "search_queries": [{"q": "best trail shoes"}],
      "content_references": [{"title": "Review", "url": "https://r.example"}]
    }}}
  }
}`

const quietConversation = `{
  "mapping": {
    "u1": {"message": {"author": {"role": "user"}, "content": {"parts": ["hello"]}}},
    "a1": {"parent": "u1", "message": {"author": {"role": "assistant"}, "content": {"parts": ["hi"]}}}
  }
}`

type fakeFetcher struct {
	session      *models.Session
	sessionErr   error
	body         []byte
	fetchErr     error
	gotToken     string
	gotCookie    string
	fetchCalls   int
	sessionCalls int
}

func (f *fakeFetcher) FetchSession(_ context.Context, cookie string) (*models.Session, error) {
	f.sessionCalls++
	f.gotCookie = cookie
	return f.session, f.sessionErr
}

func (f *fakeFetcher) FetchConversation(_ context.Context, token, _ string) ([]byte, error) {
	f.fetchCalls++
	f.gotToken = token
	return f.body, f.fetchErr
}

type fakeStore struct {
	saved []*models.Report
	err   error
}

func (s *fakeStore) Save(_ context.Context, r *models.Report) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, r)
	return nil
}

func createTestConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		CacheEnabled: true,
	}
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *cache.ReportCache) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, cache.NewReportCache(client, time.Minute, "", nil)
}

func createTestHandler(t *testing.T, deps Dependencies) *Handler {
	log := logger.NewTestLogger(t)
	if deps.Extractor == nil {
		deps.Extractor = extractor.New(log, extractor.WithClock(func() time.Time {
			return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		}))
	}
	return NewHandler(createTestConfig(), deps, log)
}

func docMap(t *testing.T, doc string) map[string]interface{} {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(doc), &m))
	return m
}

func boolPtr(b bool) *bool { return &b }

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_FetchWithAccessToken(t *testing.T) {
	fetcher := &fakeFetcher{body: []byte(searchConversation)}
	h := createTestHandler(t, Dependencies{Fetcher: fetcher})

	out, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", AccessToken: "tok"})
	require.NoError(t, err)

	assert.Equal(t, "tok", fetcher.gotToken)
	assert.Equal(t, 0, fetcher.sessionCalls)
	assert.Equal(t, StatusOK, out.Status)
	assert.False(t, out.Cached)
	assert.Nil(t, out.Debug)
	require.Len(t, out.Report.Results, 1)
	assert.Equal(t, "best trail shoes", out.Report.Results[0].UserPrompt)
	assert.Equal(t, []models.ShadowQuery{
		{Text: "trail running shoes 2026", Hidden: true},
		{Text: "best trail shoes", Hidden: false},
	}, out.Report.Results[0].ShadowQueries)
	assert.Equal(t, 1, out.Report.TotalCitations)
	assert.Contains(t, out.Message, "2 shadow queries")
}

func TestHandler_Execute_FetchWithSessionCookie(t *testing.T) {
	fetcher := &fakeFetcher{
		session: &models.Session{AccessToken: "from-session"},
		body:    []byte(searchConversation),
	}
	h := createTestHandler(t, Dependencies{Fetcher: fetcher})

	_, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", SessionCookie: "sid=1"})
	require.NoError(t, err)

	assert.Equal(t, "sid=1", fetcher.gotCookie)
	assert.Equal(t, "from-session", fetcher.gotToken)
}

func TestHandler_Execute_DocumentFromVariables(t *testing.T) {
	fetcher := &fakeFetcher{}
	h := createTestHandler(t, Dependencies{Fetcher: fetcher})

	out, err := h.Execute(context.Background(), &Input{
		ConversationID: "conv-1",
		Document:       docMap(t, searchConversation),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, fetcher.fetchCalls)
	assert.Equal(t, 2, out.Report.TotalShadowQueries)
}

func TestHandler_Execute_NoSearchQueries(t *testing.T) {
	h := createTestHandler(t, Dependencies{Fetcher: &fakeFetcher{body: []byte(quietConversation)}})

	out, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", AccessToken: "tok"})
	require.NoError(t, err)

	assert.Equal(t, StatusNoSearchQueries, out.Status)
	assert.Contains(t, out.Message, "web search")
	assert.Empty(t, out.Report.Results)
	require.NotNil(t, out.Debug)
	assert.Equal(t, 2, out.Debug.TotalMessages)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		fetcher  *fakeFetcher
		input    *Input
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "missing conversation id",
			fetcher:  &fakeFetcher{},
			input:    &Input{AccessToken: "tok"},
			wantCode: apperrors.ErrCodeNoConversation,
		},
		{
			name:     "no credentials",
			fetcher:  &fakeFetcher{},
			input:    &Input{ConversationID: "conv-1"},
			wantCode: apperrors.ErrCodeNotLoggedIn,
		},
		{
			name:     "session lookup fails",
			fetcher:  &fakeFetcher{sessionErr: apperrors.NewTokenExpiredError("expired")},
			input:    &Input{ConversationID: "conv-1", SessionCookie: "sid=1"},
			wantCode: apperrors.ErrCodeTokenExpired,
		},
		{
			name:     "rate limited",
			fetcher:  &fakeFetcher{fetchErr: apperrors.NewRateLimitedError(time.Second)},
			input:    &Input{ConversationID: "conv-1", AccessToken: "tok"},
			wantCode: apperrors.ErrCodeRateLimited,
		},
		{
			name:     "record without mapping",
			fetcher:  &fakeFetcher{body: []byte(`{"title": "x"}`)},
			input:    &Input{ConversationID: "conv-1", AccessToken: "tok"},
			wantCode: apperrors.ErrCodeExtractionFailed,
		},
		{
			name:     "document variable with bad mapping",
			fetcher:  &fakeFetcher{},
			input:    &Input{ConversationID: "conv-1", Document: map[string]interface{}{"mapping": "nope"}},
			wantCode: apperrors.ErrCodeExtractionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, Dependencies{Fetcher: tt.fetcher})

			out, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestHandler_Execute_CacheHit(t *testing.T) {
	_, reportCache := setupCache(t)
	fetcher := &fakeFetcher{body: []byte(searchConversation)}
	h := createTestHandler(t, Dependencies{Fetcher: fetcher, Cache: reportCache})
	input := &Input{ConversationID: "conv-1", SessionHandle: "tab-7", AccessToken: "tok"}

	first, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, fetcher.fetchCalls)
	assert.Equal(t, first.Report, second.Report)

	input.Refresh = true
	third, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, fetcher.fetchCalls)
}

func TestHandler_Execute_CacheScopedBySession(t *testing.T) {
	_, reportCache := setupCache(t)
	fetcher := &fakeFetcher{body: []byte(searchConversation)}
	h := createTestHandler(t, Dependencies{Fetcher: fetcher, Cache: reportCache})

	_, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", SessionHandle: "a", AccessToken: "tok"})
	require.NoError(t, err)
	out, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", SessionHandle: "b", AccessToken: "tok"})
	require.NoError(t, err)

	assert.False(t, out.Cached)
	assert.Equal(t, 2, fetcher.fetchCalls)
}

func TestHandler_Execute_CacheDownIsNotFatal(t *testing.T) {
	mr, reportCache := setupCache(t)
	mr.SetError("LOADING")
	h := createTestHandler(t, Dependencies{Fetcher: &fakeFetcher{body: []byte(searchConversation)}, Cache: reportCache})

	out, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, out.Status)
}

func TestHandler_Execute_Persist(t *testing.T) {
	t.Run("saved when requested", func(t *testing.T) {
		store := &fakeStore{}
		h := createTestHandler(t, Dependencies{Fetcher: &fakeFetcher{body: []byte(searchConversation)}, Store: store})

		_, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", AccessToken: "tok", Persist: boolPtr(true)})
		require.NoError(t, err)
		require.Len(t, store.saved, 1)
		assert.Equal(t, "conv-1", store.saved[0].ConversationID)
	})

	t.Run("not saved by default", func(t *testing.T) {
		store := &fakeStore{}
		h := createTestHandler(t, Dependencies{Fetcher: &fakeFetcher{body: []byte(searchConversation)}, Store: store})

		_, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", AccessToken: "tok"})
		require.NoError(t, err)
		assert.Empty(t, store.saved)
	})

	t.Run("archive failure surfaces", func(t *testing.T) {
		store := &fakeStore{err: apperrors.NewReportPersistFailedError(errors.New("db down"))}
		h := createTestHandler(t, Dependencies{Fetcher: &fakeFetcher{body: []byte(searchConversation)}, Store: store})

		_, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", AccessToken: "tok", Persist: boolPtr(true)})
		assert.Equal(t, apperrors.ErrCodeReportPersistFailed, apperrors.CodeOf(err))
	})

	t.Run("no archive configured", func(t *testing.T) {
		h := createTestHandler(t, Dependencies{Fetcher: &fakeFetcher{body: []byte(searchConversation)}})

		_, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", AccessToken: "tok", Persist: boolPtr(true)})
		assert.NoError(t, err)
	})
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	input, err := parseInput(`{"conversationId": "c1", "persist": false, "document": {"mapping": {}}}`)
	require.NoError(t, err)
	assert.Equal(t, "c1", input.ConversationID)
	require.NotNil(t, input.Persist)
	assert.False(t, *input.Persist)
	assert.NotNil(t, input.Document)

	_, err = parseInput(`{"conversationId": 12}`)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))

	_, err = parseInput(`not json`)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

func TestConfigFrom(t *testing.T) {
	c := ConfigFrom(nil)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.True(t, c.CacheEnabled)
}

func TestHandler_Execute_LenientTopLevelFields(t *testing.T) {
	doc := `{
	  "conversation_id": null,
	  "model": 4,
	  "default_model_slug": ["x"],
	  "mapping": {
	    "u1": {"message": {"author": {"role": "user"}, "content": {"parts": ["best trail shoes"]}}},
	    "a1": {"parent": "u1", "message": {"author": {"role": "assistant"}, "metadata": {"search_queries": [{"q": "trail shoes"}]}}}
	  }
	}`

	t.Run("fetched", func(t *testing.T) {
		h := createTestHandler(t, Dependencies{Fetcher: &fakeFetcher{body: []byte(doc)}})

		out, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", AccessToken: "tok"})
		require.NoError(t, err)
		assert.Equal(t, StatusOK, out.Status)
		require.Len(t, out.Report.Results, 1)
		assert.Equal(t, extractor.UnknownModel, out.Report.Results[0].Model)
	})

	t.Run("from variables", func(t *testing.T) {
		h := createTestHandler(t, Dependencies{})

		out, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1", Document: docMap(t, doc)})
		require.NoError(t, err)
		assert.Equal(t, StatusOK, out.Status)
		assert.Equal(t, 1, out.Report.TotalShadowQueries)
	})
}
