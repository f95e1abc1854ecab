package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name                  string
		version, commit, date string
		want                  versionResponse
	}{
		{
			name:    "with values",
			version: "0.3.0", commit: "abc123", date: "2026-10-01T12:00:00Z",
			want: versionResponse{Version: "0.3.0", GitCommit: "abc123", BuildDate: "2026-10-01T12:00:00Z", GoVersion: runtime.Version()},
		},
		{
			name: "defaults",
			want: versionResponse{Version: "dev", GitCommit: "unknown", BuildDate: "unknown", GoVersion: runtime.Version()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			VersionHandler(tt.version, tt.commit, tt.date).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var got versionResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			require.Equal(t, tt.want, got)
		})
	}
}
