package nse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/resilience"
)

const chainJSON = `{"records":{"underlyingValue":22000,"expiryDates":["28-Mar-2024"],"data":[
{"strikePrice":22000,"expiryDate":"28-Mar-2024","CE":{"strikePrice":22000,"expiryDate":"28-Mar-2024","openInterest":100},
"PE":{"strikePrice":22000,"expiryDate":"28-Mar-2024","openInterest":120}}]}}`

type fakeNSE struct {
	apiStatus  int
	apiBody    string
	homeStatus int
	apiCalls   atomic.Int32
	homeCalls  atomic.Int32
	gotSymbol  atomic.Value
	sawCookie  atomic.Bool
}

func (f *fakeNSE) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.homeCalls.Add(1)
		if f.homeStatus != 0 {
			w.WriteHeader(f.homeStatus)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "session", Path: "/"})
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/option-chain", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/api/option-chain-indices", func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls.Add(1)
		f.gotSymbol.Store(r.URL.Query().Get("symbol"))
		if _, err := r.Cookie("nsit"); err == nil {
			f.sawCookie.Store(true)
		}
		if f.apiStatus != 0 {
			w.WriteHeader(f.apiStatus)
		}
		w.Write([]byte(f.apiBody))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeNSE, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL:      srv.URL,
		Timeout:      2 * time.Second,
		MaxRetries:   retries,
		PrimeSession: true,
	}
	c, err := NewClient(cfg,
		WithBackoff(func(int, error) time.Duration { return 0 }),
		WithClock(func() time.Time { return time.Date(2024, 3, 23, 11, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return c
}

func TestFetchOptionChain_Success(t *testing.T) {
	f := &fakeNSE{apiBody: chainJSON}
	c := newTestClient(t, f, 3)

	doc, err := c.FetchOptionChain(context.Background(), " nifty ")
	require.NoError(t, err)

	records, ok := doc["records"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 22000.0, records["underlyingValue"])
	assert.Equal(t, "NIFTY", f.gotSymbol.Load())
	assert.True(t, f.sawCookie.Load(), "API call should carry the primed session cookie")
}

func TestFetchOptionChain_ForbiddenIsNotRetried(t *testing.T) {
	f := &fakeNSE{apiStatus: http.StatusForbidden}
	c := newTestClient(t, f, 3)

	_, err := c.FetchOptionChain(context.Background(), "NIFTY")
	require.Error(t, err)

	var fe *apperrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.False(t, fe.Retryable)
	assert.Contains(t, fe.Message, "market hours")
	assert.Equal(t, int32(1), f.apiCalls.Load())
	assert.True(t, errors.Is(err, apperrors.ErrFetchFailed))
}

func TestFetchOptionChain_EmptyResponses(t *testing.T) {
	for _, body := range []string{"", "   ", "{}", "null"} {
		f := &fakeNSE{apiBody: body}
		c := newTestClient(t, f, 3)

		_, err := c.FetchOptionChain(context.Background(), "NIFTY")
		var fe *apperrors.FetchError
		require.True(t, errors.As(err, &fe), "body %q", body)
		assert.Equal(t, StageDecode, fe.Stage)
		assert.Equal(t, int32(1), f.apiCalls.Load(), "body %q should not be retried", body)
	}
}

func TestFetchOptionChain_MalformedJSON(t *testing.T) {
	f := &fakeNSE{apiBody: "<html>blocked</html>"}
	c := newTestClient(t, f, 3)

	_, err := c.FetchOptionChain(context.Background(), "NIFTY")
	var fe *apperrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Message, "malformed JSON")
	assert.Equal(t, int32(1), f.apiCalls.Load())
}

func TestFetchOptionChain_ServerErrorsAreRetried(t *testing.T) {
	f := &fakeNSE{apiStatus: http.StatusBadGateway}
	c := newTestClient(t, f, 3)

	_, err := c.FetchOptionChain(context.Background(), "NIFTY")
	require.Error(t, err)
	assert.Equal(t, int32(3), f.apiCalls.Load())
	assert.True(t, apperrors.IsRetryable(err))
}

func TestFetchOptionChain_HomeForbiddenIsRetried(t *testing.T) {
	f := &fakeNSE{homeStatus: http.StatusForbidden}
	c := newTestClient(t, f, 2)

	_, err := c.FetchOptionChain(context.Background(), "NIFTY")
	var fe *apperrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, StageHome, fe.Stage)
	assert.Equal(t, int32(2), f.homeCalls.Load())
	assert.Equal(t, int32(0), f.apiCalls.Load())
}

func TestFetchOptionChain_CircuitOpens(t *testing.T) {
	f := &fakeNSE{apiStatus: http.StatusForbidden}
	c := newTestClient(t, f, 1)
	cb := resilience.NewCircuitBreaker("nse", resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	WithBreaker(cb)(c)

	for i := 0; i < 2; i++ {
		_, _ = c.FetchOptionChain(context.Background(), "NIFTY")
	}
	_, err := c.FetchOptionChain(context.Background(), "NIFTY")
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.True(t, errors.Is(err, apperrors.ErrFetchFailed))
	assert.Equal(t, int32(2), f.apiCalls.Load())
}

func TestFetchOptionChain_ContextCancelled(t *testing.T) {
	f := &fakeNSE{apiBody: chainJSON}
	c := newTestClient(t, f, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchOptionChain(ctx, "NIFTY")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, resilience.CircuitClosed, c.Breaker().State())
}

func TestFetchRaw_ReturnsBody(t *testing.T) {
	f := &fakeNSE{apiBody: chainJSON}
	c := newTestClient(t, f, 1)

	body, err := c.FetchRaw(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.JSONEq(t, chainJSON, string(body))
}

func TestNewClient_RejectsZeroRetries(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://localhost", MaxRetries: 0})
	assert.True(t, errors.Is(err, apperrors.ErrInputValidation))
}

func TestDefaultBackoff(t *testing.T) {
	forbidden := apperrors.NewFetchError(StageHome, http.StatusForbidden, "", true, nil)
	assert.Equal(t, 6*time.Second, defaultBackoff(2, forbidden))
	assert.Equal(t, 2*time.Second, defaultBackoff(2, errors.New("timeout")))
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.json")
	require.NoError(t, os.WriteFile(path, []byte(chainJSON), 0o644))

	doc, err := FileFetcher{Path: path}.FetchOptionChain(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Contains(t, doc, "records")

	_, err = FileFetcher{Path: filepath.Join(dir, "missing.json")}.FetchOptionChain(context.Background(), "")
	assert.True(t, errors.Is(err, apperrors.ErrFetchFailed))

	_, err = DecodeDocument([]byte("{}"))
	assert.Error(t, err)
}
