package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

type fakeExchanger struct {
	codes []string
	err   error
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.codes = append(f.codes, code)
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh"}, nil
}

func TestBasicRouter(t *testing.T) {
	t.Run("method patterns", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle("get", "/status", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "ok")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
			t.Errorf("GET /status = %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST /status = %d, want 405", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("middleware order = %s", got)
		}
	})

	t.Run("logging middleware", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)
		shared.SetLogLevel(logger, log.DebugLevel)

		router := NewBasicRouter()
		router.Use(LoggingMiddleware(logger))
		router.Handle(http.MethodGet, "/callback", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=secret", nil))
		out := buf.String()
		if !strings.Contains(out, "/callback") || !strings.Contains(out, "418") {
			t.Errorf("expected request log, got %q", out)
		}
		if strings.Contains(out, "secret") {
			t.Errorf("log must not include the query string: %q", out)
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		exchErr    error
		wantStatus int
		wantErr    error
	}{
		{name: "success", query: "?state=abc&code=xyz", wantStatus: http.StatusOK},
		{name: "bad state", query: "?state=nope&code=xyz", wantStatus: http.StatusBadRequest, wantErr: shared.ErrAuthFailed},
		{name: "denied", query: "?state=abc&error=access_denied", wantStatus: http.StatusBadRequest, wantErr: shared.ErrAuthFailed},
		{name: "exchange failure", query: "?state=abc&code=xyz", exchErr: shared.ErrAuthFailed, wantStatus: http.StatusInternalServerError, wantErr: shared.ErrAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exch := &fakeExchanger{err: tt.exchErr}
			h := NewOAuthHandler(exch, "abc", "")

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			res := <-h.Result()
			if tt.wantErr != nil {
				if !errors.Is(res.Error(), tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, res.Error())
				}
				return
			}
			if res.Error() != nil || res.Token.AccessToken != "access-xyz" {
				t.Errorf("unexpected result: %+v %v", res.Token, res.Error())
			}
		})
	}

	t.Run("only first callback is processed", func(t *testing.T) {
		exch := &fakeExchanger{}
		h := NewOAuthHandler(exch, "abc", "/cb")
		if got := h.Routes(); len(got) != 1 || got[0] != "/cb" {
			t.Errorf("Routes() = %v", got)
		}

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cb?state=abc&code=1", nil))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=abc&code=2", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("second callback status = %d, want 400", rec.Code)
		}
		if len(exch.codes) != 1 {
			t.Errorf("expected one exchange, got %v", exch.codes)
		}
	})
}

func TestWaitForCallback(t *testing.T) {
	t.Run("delivers token", func(t *testing.T) {
		h := NewOAuthHandler(&fakeExchanger{}, "abc", "")

		token, err := WaitForCallback(context.Background(), "127.0.0.1:0", h, 5*time.Second, nil, func(addr string) {
			go func() {
				resp, err := http.Get("http://" + addr + "/callback?state=abc&code=xyz")
				if err == nil {
					resp.Body.Close()
				}
			}()
		})
		if err != nil {
			t.Fatalf("WaitForCallback() error = %v", err)
		}
		if token.AccessToken != "access-xyz" {
			t.Errorf("AccessToken = %q", token.AccessToken)
		}
	})

	t.Run("times out", func(t *testing.T) {
		h := NewOAuthHandler(&fakeExchanger{}, "abc", "")
		_, err := WaitForCallback(context.Background(), "127.0.0.1:0", h, 50*time.Millisecond, nil, nil)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("bad address", func(t *testing.T) {
		h := NewOAuthHandler(&fakeExchanger{}, "abc", "")
		if _, err := WaitForCallback(context.Background(), "256.0.0.1:99999", h, time.Second, nil, nil); err == nil {
			t.Error("expected listen error")
		}
	})
}
