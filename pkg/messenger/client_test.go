package messenger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgdump/pkg/auth"
	errs "msgdump/pkg/errors"
	"msgdump/pkg/logger"
	"msgdump/pkg/retry"
)

func testBundle() *auth.Bundle {
	return &auth.Bundle{
		Account:  "tester",
		Cookie:   "c_user=100012345678; xs=42%3Asession%3A2",
		UserID:   "100012345678",
		Ajax:     "1",
		Dyn:      "7AgNe5z5yfwgDgDxKzEjFwn8K26m",
		Req:      "1a",
		DTSG:     "AQHRk4vR7pfc:AQH0x2n1mQzz",
		Revision: "1004612345",
	}
}

func newTestClient(serverURL string) *Client {
	client := NewClient(testBundle(), 5*time.Second, logger.NewNopLogger())
	client.SetBaseURL(serverURL)
	return client
}

const threadListBody = ResponseGuard + `{"payload":{"threads":[` +
	`{"thread_fbid":"111","thread_type":2,"name":"Camping","participants":["fbid:1","fbid:2","fbid:3"],"last_message_timestamp":1500000000000},` +
	`{"thread_fbid":"222","other_user_fbid":"2","thread_type":1,"participants":["fbid:1","fbid:2"],"last_message_timestamp":1400000000000}` +
	`],"participants":[{"fbid":"1","name":"Alice"},{"fbid":"2","name":"Bob"},{"fbid":"3","name":"Carol"}]}}`

const historyBody = ResponseGuard + `{"payload":{"actions":[` +
	`{"action_type":"ma-type:user-generated-message","author":"fbid:1","body":"older","timestamp":1000,"attachments":[]},` +
	`{"action_type":"ma-type:user-generated-message","author":"fbid:2","body":"newer","timestamp":2000,"attachments":[]}` +
	`]}}`

const historyEndBody = ResponseGuard + `{"payload":{"end_of_history":true,"actions":[` +
	`{"action_type":"ma-type:user-generated-message","author":"fbid:1","body":"first ever","timestamp":500,"attachments":[]}` +
	`]}}`

const rejectionBody = ResponseGuard + `{"error":1357001,"errorSummary":"Please log in","errorDescription":"Your session has expired.","payload":null}`

func TestFetchThreadPage(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, ThreadListEndpoint, r.URL.Path)
		require.NoError(t, r.ParseForm())

		gotForm = map[string]string{}
		for key := range r.PostForm {
			gotForm[key] = r.PostForm.Get(key)
		}

		w.Write([]byte(threadListBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	page, err := client.FetchThreadPage(context.Background(), FolderInbox, 0, 1000)
	require.NoError(t, err)

	assert.Equal(t, FolderInbox, page.Folder)
	assert.Len(t, page.Threads, 2)
	assert.Len(t, page.Participants, 3)
	assert.True(t, page.Last, "two threads against a limit of 1000 is a short page")

	assert.Equal(t, "111", page.Threads[0].ThreadFBID)
	assert.Equal(t, ThreadTypeGroup, page.Threads[0].ThreadType)
	assert.Equal(t, "Camping", page.Threads[0].Name)
	assert.Equal(t, "2", page.Threads[1].OtherUserFBID)

	// Listing form keys plus the session bundle's hidden fields
	assert.Equal(t, "0", gotForm["inbox[offset]"])
	assert.Equal(t, "1000", gotForm["inbox[limit]"])
	assert.Equal(t, "web_messenger", gotForm["client"])
	assert.Equal(t, "100012345678", gotForm["__user"])
	assert.Equal(t, "AQHRk4vR7pfc:AQH0x2n1mQzz", gotForm["fb_dtsg"])
	assert.Equal(t, "1004612345", gotForm["__rev"])
}

func TestFetchThreadPageArchived(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "500", r.PostForm.Get("action:archived[offset]"))
		assert.Equal(t, "1000", r.PostForm.Get("action:archived[limit]"))
		assert.Empty(t, r.PostForm.Get("inbox[offset]"))
		w.Write([]byte(ResponseGuard + `{"payload":{"threads":[],"participants":[]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	page, err := client.FetchThreadPage(context.Background(), FolderArchived, 500, 1000)
	require.NoError(t, err)
	assert.Empty(t, page.Threads)
	assert.True(t, page.Last)
}

func TestFetchThreadPageSendsCookie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Cookie"), "c_user=100012345678")
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		w.Write([]byte(ResponseGuard + `{"payload":{"threads":[],"participants":[]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchThreadPage(context.Background(), FolderInbox, 0, 1000)
	require.NoError(t, err)
}

func TestFetchHistoryPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, ThreadInfoEndpoint, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "0", r.PostForm.Get("messages[thread_fbids][111][offset]"))
		assert.Equal(t, "2000", r.PostForm.Get("messages[thread_fbids][111][limit]"))
		assert.Equal(t, "0", r.PostForm.Get("messages[thread_fbids][111][timestamp]"))
		w.Write([]byte(historyBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	thread := ThreadRef{ID: "111", Kind: ThreadKindGroup}
	page, err := client.FetchHistoryPage(context.Background(), thread, Cursor{}, 2000)
	require.NoError(t, err)

	assert.Len(t, page.Records, 2)
	assert.False(t, page.End)

	// The continuation cursor advances by the page size and pins the
	// oldest record's timestamp
	assert.Equal(t, 2000, page.Cursor.Offset)
	assert.Equal(t, int64(1000), page.Cursor.Timestamp)

	oldest, err := DecodeAction(page.Records[0])
	require.NoError(t, err)
	assert.Equal(t, "older", oldest.Body)
	assert.Equal(t, "1", oldest.AuthorID())
}

func TestFetchHistoryPageEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(historyEndBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	thread := ThreadRef{ID: "222", Kind: ThreadKindUser}
	page, err := client.FetchHistoryPage(context.Background(), thread, Cursor{Offset: 4000, Timestamp: 1000}, 2000)
	require.NoError(t, err)

	assert.True(t, page.End)
	assert.Len(t, page.Records, 1)
}

func TestFetchHistoryPageEmptyIsEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ResponseGuard + `{"payload":{"actions":[]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	page, err := client.FetchHistoryPage(context.Background(), ThreadRef{ID: "1", Kind: ThreadKindUser}, Cursor{}, 2000)
	require.NoError(t, err)
	assert.True(t, page.End)
	assert.Empty(t, page.Records)
}

func TestFetchHistoryPageRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rejectionBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchHistoryPage(context.Background(), ThreadRef{ID: "1", Kind: ThreadKindUser}, Cursor{}, 2000)
	require.Error(t, err)

	assert.True(t, errs.IsAuth(err), "a mercury rejection is an auth failure")
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Please log in", apiErr.Message)
	assert.Equal(t, 1357001, apiErr.Code)
}

func TestResponseWithoutGuard(t *testing.T) {
	// Defensive: decode still works if the guard is ever absent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"payload":{"threads":[],"participants":[]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchThreadPage(context.Background(), FolderInbox, 0, 1000)
	assert.NoError(t, err)
}

func TestMalformedResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ResponseGuard + `{not json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchThreadPage(context.Background(), FolderInbox, 0, 1000)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
}

func TestFetchHistoryPageContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(historyBody))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := newTestClient(server.URL)
	_, err := client.FetchHistoryPage(ctx, ThreadRef{ID: "1", Kind: ThreadKindUser}, Cursor{}, 2000)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestDownloadResource(t *testing.T) {
	payload := []byte("binary image bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Media hosts must never see the session cookie
		assert.Empty(t, r.Header.Get("Cookie"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		switch r.URL.Path {
		case "/media/photo.jpg":
			w.Write(payload)
		case "/media/expired.jpg":
			w.WriteHeader(http.StatusForbidden)
		case "/media/gone.mp4":
			w.WriteHeader(http.StatusGone)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	t.Run("success", func(t *testing.T) {
		data, err := client.DownloadResource(context.Background(), server.URL+"/media/photo.jpg")
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("expired 403", func(t *testing.T) {
		_, err := client.DownloadResource(context.Background(), server.URL+"/media/expired.jpg")
		require.Error(t, err)
		assert.True(t, errs.IsExpired(err))
	})

	t.Run("expired 410", func(t *testing.T) {
		_, err := client.DownloadResource(context.Background(), server.URL+"/media/gone.mp4")
		require.Error(t, err)
		assert.True(t, errs.IsExpired(err))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.DownloadResource(context.Background(), server.URL+"/media/missing.jpg")
		require.Error(t, err)
		assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
	})
}

// fastBackoff keeps retry delays at a millisecond so retry tests run fast
func fastBackoff() *retry.ErrorTypeBackoff {
	return &retry.ErrorTypeBackoff{
		NetworkErrorBackoff: &retry.ConstantBackoff{Delay: time.Millisecond},
		RateLimitBackoff:    &retry.ConstantBackoff{Delay: time.Millisecond},
		ServerErrorBackoff:  &retry.ConstantBackoff{Delay: time.Millisecond},
		DefaultBackoff:      &retry.ConstantBackoff{Delay: time.Millisecond},
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(threadListBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.SetRetrier(retry.NewHTTPRetrierWithBackoff(5, fastBackoff(), logger.NewNopLogger()))

	page, err := client.FetchThreadPage(context.Background(), FolderInbox, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, page.Threads, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(rejectionBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.SetRetrier(retry.NewHTTPRetrierWithBackoff(5, fastBackoff(), logger.NewNopLogger()))

	_, err := client.FetchThreadPage(context.Background(), FolderInbox, 0, 1000)
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err))
	assert.Equal(t, int32(1), calls.Load(), "auth rejections are fatal, never retried")
}

func TestClientRetriesDownloads(t *testing.T) {
	var calls atomic.Int32
	payload := []byte("binary image bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.SetRetrier(retry.NewHTTPRetrierWithBackoff(5, fastBackoff(), logger.NewNopLogger()))

	data, err := client.DownloadResource(context.Background(), server.URL+"/media/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryExpiredDownloads(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.SetRetrier(retry.NewHTTPRetrierWithBackoff(5, fastBackoff(), logger.NewNopLogger()))

	_, err := client.DownloadResource(context.Background(), server.URL+"/media/expired.jpg")
	require.Error(t, err)
	assert.True(t, errs.IsExpired(err))
	assert.Equal(t, int32(1), calls.Load(), "expired URLs need a re-dump, retrying cannot help")
}

func TestClientLogsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ResponseGuard + `{"payload":{"threads":[],"participants":[]}}`))
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	client := NewClient(testBundle(), 5*time.Second, log)
	client.SetBaseURL(server.URL)

	_, err := client.FetchThreadPage(context.Background(), FolderInbox, 0, 1000)
	require.NoError(t, err)

	assert.True(t, log.HasMessage("sending HTTP request"))
	assert.True(t, log.HasMessage("fetched thread listing page"))
	assert.False(t, log.HasError())
}

func TestStripGuard(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(StripGuard([]byte(ResponseGuard+`{"a":1}`))))
	assert.Equal(t, `{"a":1}`, string(StripGuard([]byte(`{"a":1}`))))
	assert.Equal(t, ``, string(StripGuard([]byte(ResponseGuard))))
}
