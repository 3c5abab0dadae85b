package digcontainer

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matokeo/apps/api/echo"
	"github.com/trezcool/matokeo/apps/shared"
	"github.com/trezcool/matokeo/core"
)

func testConfig(engine string) NewConfigFunc {
	return func() *core.Config {
		return &core.Config{
			TestMode: true,
			Server:   core.ServerConfig{DisableReqLogs: true},
			Database: core.DatabaseConfig{Engine: engine},
		}
	}
}

func TestNew(t *testing.T) {
	c, err := New(testConfig(core.DBEngineMemory))
	require.NoError(t, err)

	err = c.Invoke(func(server echoapi.Server, storage *shared.Storage, dbLogger DBLoggerParam) {
		assert.Nil(t, storage.DB)
		assert.NotNil(t, dbLogger.Logger)

		tests := []struct {
			path     string
			wantCode int
		}{
			{path: "/", wantCode: http.StatusOK},
			{path: "/v1/classes", wantCode: http.StatusOK},
			{path: "/v1/classes/P.9/results", wantCode: http.StatusNotFound},
			{path: "/metrics", wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.path, func(t *testing.T) {
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
				assert.Equal(t, tt.wantCode, rec.Code)
			})
		}
	})
	require.NoError(t, err)
}

func TestNew_storageError(t *testing.T) {
	c, err := New(testConfig("oracle"))
	require.NoError(t, err)

	err = c.Invoke(func(*shared.Storage) {
		t.Fatal("storage built for an unsupported engine")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database engine")
}
