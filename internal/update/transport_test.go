package update

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_FetchText(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("<html>tags</html>"))
	}))
	defer server.Close()

	tr := NewHTTPTransport(WithUserAgent("uplift/test"), WithHeader("Accept", "text/html"))
	body, err := tr.FetchText(context.Background(), server.URL+"/demo/tags")
	require.NoError(t, err)
	assert.Equal(t, "<html>tags</html>", body)
	assert.Equal(t, "uplift/test", gotUA)
	assert.Equal(t, "text/html", gotAccept)
}

func TestHTTPTransport_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	tr := NewHTTPTransport()
	_, err := tr.FetchText(context.Background(), server.URL+"/x?token=secret")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.NotContains(t, err.Error(), "secret")

	var buf bytes.Buffer
	_, err = tr.FetchBytes(context.Background(), server.URL+"/a.zip", &buf)
	assert.True(t, errors.As(err, &se))
	assert.Zero(t, buf.Len())
}

func TestHTTPTransport_FetchBytes(t *testing.T) {
	payload := bytes.Repeat([]byte("z"), 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	var buf bytes.Buffer
	n, err := NewHTTPTransport().FetchBytes(context.Background(), server.URL, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestHTTPTransport_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	_, err := NewHTTPTransport().FetchBytes(ctx, server.URL, &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPTransport_TokenOnlyForTrustedHosts(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	_, err = NewHTTPTransport(WithToken("t0k", "api.github.com")).FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Empty(t, gotAuth)

	_, err = NewHTTPTransport(WithToken("t0k", u.Hostname())).FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Bearer t0k", gotAuth)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.test/a.zip", redactURL("https://user:pw@example.test/a.zip?sig=abc#frag"))
	assert.Equal(t, "<invalid url>", redactURL("://bad"))
}
