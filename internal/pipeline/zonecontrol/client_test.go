package zonecontrol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_GetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/zones/z1/status", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"zone_id":    "z1",
			"is_playing": true,
			"volume":     65,
			"playlist":   "Smooth Jazz",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	status, err := c.GetStatus(context.Background(), "z1")

	require.NoError(t, err)
	require.Equal(t, "z1", status.ZoneID)
	require.True(t, status.IsPlaying)
	require.Equal(t, 65, status.Volume)
	require.Equal(t, "Smooth Jazz", status.Playlist)
}

func TestClient_SetVolumeSendsBody(t *testing.T) {
	var got map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/zones/z1/volume", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	require.NoError(t, c.SetVolume(context.Background(), "z1", 70))
	require.Equal(t, map[string]int{"volume": 70}, got)
}

func TestClient_GetPlaylists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/playlists", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"playlists": []map[string]string{
				{"id": "pl-1", "name": "Morning Acoustic"},
				{"id": "pl-2", "name": "Smooth Jazz"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	playlists, err := c.GetPlaylists(context.Background())

	require.NoError(t, err)
	require.Len(t, playlists, 2)
	require.Equal(t, "pl-2", playlists[1].ID)
}

func TestClient_ErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "zone not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	err := c.Play(context.Background(), "missing")

	require.Error(t, err)
	require.Contains(t, err.Error(), "status 404")
	require.Contains(t, err.Error(), "zone not found")
}

func TestClient_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, "", time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Pause(ctx, "z1")
	require.Error(t, err)
}
