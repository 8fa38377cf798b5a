package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	apperr "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/pkg/errors"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/services"
)

type stubIngest struct {
	res    *services.IngestResult
	report *services.ExportReport
	err    error
	last   services.IngestTuple
}

func (s *stubIngest) Ingest(_ context.Context, tuple services.IngestTuple) (*services.IngestResult, error) {
	s.last = tuple
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func (s *stubIngest) IngestExport(_ context.Context, _ io.Reader, _ services.ExportOptions) (*services.ExportReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func newIngestRouter(t *testing.T, stub *stubIngest) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	require.NoError(t, err)

	h := NewIngestHandler(log, stub)
	r := gin.New()
	r.POST("/api/ingest/message", h.IngestMessage)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestIngestMessageCreated(t *testing.T) {
	stub := &stubIngest{res: &services.IngestResult{Msg: &types.RawMessage{}, Created: true, Count: 1}}
	r := newIngestRouter(t, stub)

	w := postJSON(r, "/api/ingest/message", `{
		"group_key": "grp-a",
		"sender_name": "Priya",
		"text": "selling a desk",
		"timestamp": "2024-03-10T09:00:00Z",
		"source_key": "src-1"
	}`)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "grp-a", stub.last.GroupKey)
	require.Equal(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), stub.last.Timestamp.UTC())
}

func TestIngestMessageDuplicateReturnsOK(t *testing.T) {
	stub := &stubIngest{res: &services.IngestResult{Msg: &types.RawMessage{}, Created: false, Count: 2}}
	r := newIngestRouter(t, stub)

	w := postJSON(r, "/api/ingest/message", `{
		"group_key": "grp-a",
		"sender_name": "Priya",
		"text": "selling a desk",
		"timestamp": "2024-03-10T09:00:00Z",
		"source_key": "src-1"
	}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestIngestMessageBadRequest(t *testing.T) {
	r := newIngestRouter(t, &stubIngest{})
	w := postJSON(r, "/api/ingest/message", `{"sender_name": "Priya"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestMessageErrorMapping(t *testing.T) {
	body := `{
		"group_key": "grp-a",
		"sender_name": "Priya",
		"text": "x",
		"timestamp": "2024-03-10T09:00:00Z",
		"source_key": "src-1"
	}`

	conflict := &stubIngest{err: &apperr.ConflictError{GroupKey: "grp-a", SourceKey: "src-1"}}
	w := postJSON(newIngestRouter(t, conflict), "/api/ingest/message", body)
	require.Equal(t, http.StatusConflict, w.Code)

	invalid := &stubIngest{err: apperr.Validationf("missing sender")}
	w = postJSON(newIngestRouter(t, invalid), "/api/ingest/message", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
