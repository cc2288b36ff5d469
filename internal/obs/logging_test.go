package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leafmarket-checkout/internal/common"
)

func TestRequestLoggerWritesBuyerAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "debug")

	var ctxLogger *zerolog.Logger
	handler := RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = zerolog.Ctx(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", nil)
	ctx := WithRoutePattern(req.Context(), "/api/v1/checkout/quote")
	ctx = common.WithBuyerID(ctx, "buyer-1")
	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	require.NotNil(t, ctxLogger)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "/api/v1/checkout/quote", entry["route"])
	require.Equal(t, "buyer-1", entry["buyer_id"])
	require.EqualValues(t, http.StatusCreated, entry["status"])
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	Component(newLogger(&buf, "", "info"), "shipping").Info().Msg("x")
	require.Contains(t, buf.String(), `"component":"shipping"`)
}
