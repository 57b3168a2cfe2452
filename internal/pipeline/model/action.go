package model

// ActionType names a remote zone-control operation.
type ActionType string

const (
	ActionVolumeChange   ActionType = "volume_change"
	ActionPlaylistChange ActionType = "playlist_change"
	ActionPlay           ActionType = "play"
	ActionPause          ActionType = "pause"
	ActionSkip           ActionType = "skip"
	ActionStatusCheck    ActionType = "status_check"
)

// ActionResult is the structured outcome of one zone-control call. A
// message produces zero or more of these; failures are results, not
// errors, so a degraded reply can still be generated.
type ActionResult struct {
	Type           ActionType `json:"type"`
	ZoneID         string     `json:"zone_id"`
	Success        bool       `json:"success"`
	Detail         string     `json:"detail,omitempty"`
	PreviousVolume int        `json:"previous_volume,omitempty"`
	NewVolume      int        `json:"new_volume,omitempty"`
	Playlist       string     `json:"playlist,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// CountOutcomes tallies successes and failures across results.
func CountOutcomes(results []ActionResult) (success, failure int) {
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failure++
		}
	}
	return success, failure
}

// ZoneStatus is the remote player state for one zone.
type ZoneStatus struct {
	ZoneID    string `json:"zone_id"`
	IsPlaying bool   `json:"is_playing"`
	Volume    int    `json:"volume"`
	Playlist  string `json:"playlist,omitempty"`
	Track     string `json:"track,omitempty"`
}

// Playlist is one entry of the zone-control catalog.
type Playlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
