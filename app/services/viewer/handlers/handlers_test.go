package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/powchain/app/services/viewer/handlers"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_Index(t *testing.T) {
	app, err := handlers.UIMux("test-build", "node1:8080", make(chan os.Signal, 1), zap.NewNop().Sugar())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.True(t, strings.Contains(body, "ws://node1:8080/v1/events"), "should point at the node events")
	require.True(t, strings.Contains(body, "test-build"))
}
