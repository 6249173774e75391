package httpsrv

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/atopx/tinyq/internal/logger"
	"github.com/atopx/tinyq/internal/store"
)

func TestHandleHealth(t *testing.T) {
	st := store.New(4, logger.New(os.Stderr, logger.LevelError, "[test]"))
	defer st.ShutdownBgtask()
	s := NewServer(":0", logger.New(os.Stderr, logger.LevelError, "[test]"), st)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body, _ := io.ReadAll(rr.Result().Body)
	if string(body) != `{"status":"ok"}` {
		t.Fatalf("body = %q", body)
	}
}

func TestHandleTopicsReportsBacklogLength(t *testing.T) {
	st := store.New(4, logger.New(os.Stderr, logger.LevelError, "[test]"))
	defer st.ShutdownBgtask()
	st.Push("orders", []byte("a"))
	st.Push("orders", []byte("b"))

	s := NewServer(":0", logger.New(os.Stderr, logger.LevelError, "[test]"), st)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/topics", nil)
	s.server.Handler.ServeHTTP(rr, req)

	var got []topicInfo
	if err := json.NewDecoder(rr.Result().Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Name != "orders" || got[0].Length != 2 {
		t.Fatalf("topics = %+v", got)
	}
}

func TestHandleTopicsRejectsNonGet(t *testing.T) {
	st := store.New(4, logger.New(os.Stderr, logger.LevelError, "[test]"))
	defer st.ShutdownBgtask()
	s := NewServer(":0", logger.New(os.Stderr, logger.LevelError, "[test]"), st)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/topics", nil)
	s.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}
