package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bma-social/support-core/internal/pipeline/guard"
	"github.com/bma-social/support-core/internal/pipeline/model"
	logx "github.com/bma-social/support-core/pkg/logger"
)

const serviceUnavailableDetail = "music system temporarily unavailable"

const (
	minVolume = 0
	maxVolume = 100
)

// Executor maps a classified intent onto zone-control calls. Every call
// runs through breaker check, rate-limiter acquire, then the remote
// client; failures become structured ActionResults, never errors, so a
// degraded reply can still be produced.
//
// Per-message zone calls run concurrently, but the semaphore caps
// outstanding remote calls process-wide regardless of token
// availability.
type Executor struct {
	zones       model.ZoneControl
	breaker     *guard.CircuitBreaker
	limiter     *guard.TokenBucket
	sem         *semaphore.Weighted
	maxZones    int
	callTimeout time.Duration
	volumeStep  int
}

type Config struct {
	MaxZonesPerMessage int
	MaxConcurrentCalls int64
	CallTimeout        time.Duration
	VolumeStep         int
}

func New(zones model.ZoneControl, breaker *guard.CircuitBreaker, limiter *guard.TokenBucket, cfg Config) *Executor {
	return &Executor{
		zones:       zones,
		breaker:     breaker,
		limiter:     limiter,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrentCalls),
		maxZones:    cfg.MaxZonesPerMessage,
		callTimeout: cfg.CallTimeout,
		volumeStep:  cfg.VolumeStep,
	}
}

// Execute performs the remote actions for one classified message and
// returns one result per zone touched. Intents without a remote action
// return no results.
func (e *Executor) Execute(ctx context.Context, mctx model.ConversationContext, cls model.ClassificationResult) []model.ActionResult {
	zoneIDs := mctx.ZoneIDs
	if len(zoneIDs) > e.maxZones {
		zoneIDs = zoneIDs[:e.maxZones]
	}

	switch cls.Intent {
	case model.IntentVolumeAdjust:
		return e.fanOut(ctx, zoneIDs, model.ActionVolumeChange, func(ctx context.Context, zoneID string) model.ActionResult {
			return e.adjustVolume(ctx, zoneID, cls)
		})
	case model.IntentPlaylistChange:
		genre, ok := cls.EntityValue(model.EntityGenre)
		if !ok {
			return nil
		}
		return e.fanOut(ctx, zoneIDs, model.ActionPlaylistChange, func(ctx context.Context, zoneID string) model.ActionResult {
			return e.changePlaylist(ctx, zoneID, genre)
		})
	case model.IntentMusicStop:
		return e.fanOut(ctx, zoneIDs, model.ActionPause, func(ctx context.Context, zoneID string) model.ActionResult {
			err := e.guarded(ctx, func(ctx context.Context) error { return e.zones.Pause(ctx, zoneID) })
			return simpleResult(model.ActionPause, zoneID, "music paused", err)
		})
	case model.IntentMusicStart:
		return e.fanOut(ctx, zoneIDs, model.ActionPlay, func(ctx context.Context, zoneID string) model.ActionResult {
			err := e.guarded(ctx, func(ctx context.Context) error { return e.zones.Play(ctx, zoneID) })
			return simpleResult(model.ActionPlay, zoneID, "music playing", err)
		})
	case model.IntentMusicNotPlaying:
		return e.fanOut(ctx, zoneIDs, model.ActionStatusCheck, e.diagnosePlayback)
	case model.IntentCurrentPlaying:
		return e.fanOut(ctx, zoneIDs, model.ActionStatusCheck, e.reportStatus)
	default:
		return nil
	}
}

// fanOut runs one action per zone concurrently under the process-wide
// semaphore, preserving zone order in the results. An open breaker
// short-circuits the whole fan-out with unavailable results.
func (e *Executor) fanOut(ctx context.Context, zoneIDs []string, action model.ActionType, fn func(context.Context, string) model.ActionResult) []model.ActionResult {
	if len(zoneIDs) == 0 {
		return nil
	}

	if e.breaker.IsOpen() {
		logx.Warn().Str("action", string(action)).Msg("zone-control circuit breaker open, skipping remote calls")
		results := make([]model.ActionResult, len(zoneIDs))
		for i, zoneID := range zoneIDs {
			results[i] = model.ActionResult{
				Type:   action,
				ZoneID: zoneID,
				Error:  serviceUnavailableDetail,
			}
		}
		return results
	}

	results := make([]model.ActionResult, len(zoneIDs))
	var wg sync.WaitGroup
	for i, zoneID := range zoneIDs {
		wg.Add(1)
		go func(i int, zoneID string) {
			defer wg.Done()
			if err := e.sem.Acquire(ctx, 1); err != nil {
				results[i] = model.ActionResult{Type: action, ZoneID: zoneID, Error: err.Error()}
				return
			}
			defer e.sem.Release(1)

			callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
			defer cancel()
			results[i] = fn(callCtx, zoneID)
		}(i, zoneID)
	}
	wg.Wait()
	return results
}

// guarded wraps one remote call with breaker admission and rate-limiter
// acquire, and feeds the outcome back into the breaker.
func (e *Executor) guarded(ctx context.Context, call func(context.Context) error) error {
	if err := e.breaker.Allow(); err != nil {
		return err
	}
	if err := e.limiter.Acquire(ctx, 1); err != nil {
		// Not a dependency failure; release the admission without
		// counting it either way.
		e.breaker.Cancel()
		return err
	}

	if err := call(ctx); err != nil {
		e.breaker.RecordFailure()
		return err
	}
	e.breaker.RecordSuccess()
	return nil
}

func (e *Executor) adjustVolume(ctx context.Context, zoneID string, cls model.ClassificationResult) model.ActionResult {
	var status *model.ZoneStatus
	err := e.guarded(ctx, func(ctx context.Context) error {
		var err error
		status, err = e.zones.GetStatus(ctx, zoneID)
		return err
	})
	if err != nil {
		return model.ActionResult{Type: model.ActionVolumeChange, ZoneID: zoneID, Error: err.Error()}
	}

	current := status.Volume
	target := targetVolume(current, cls, e.volumeStep)

	if err := e.guarded(ctx, func(ctx context.Context) error { return e.zones.SetVolume(ctx, zoneID, target) }); err != nil {
		return model.ActionResult{Type: model.ActionVolumeChange, ZoneID: zoneID, Error: err.Error()}
	}

	return model.ActionResult{
		Type:           model.ActionVolumeChange,
		ZoneID:         zoneID,
		Success:        true,
		Detail:         fmt.Sprintf("volume %d -> %d", current, target),
		PreviousVolume: current,
		NewVolume:      target,
	}
}

// targetVolume resolves the requested level: an explicit numeric entity
// wins, otherwise the direction moves by one step, clamped to bounds.
func targetVolume(current int, cls model.ClassificationResult, step int) int {
	if raw, ok := cls.EntityValue(model.EntityVolumeLevel); ok {
		if level, err := parsePercent(raw); err == nil {
			return clampVolume(level)
		}
	}
	if dir, ok := cls.EntityValue(model.EntityVolumeDirection); ok {
		switch dir {
		case "up", "increase", "raise", "higher", "louder":
			return clampVolume(current + step)
		case "down", "decrease", "lower", "quieter", "softer":
			return clampVolume(current - step)
		}
	}
	return current
}

func parsePercent(raw string) (int, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(raw, "percent"), "%"))
	var level int
	if _, err := fmt.Sscanf(raw, "%d", &level); err != nil {
		return 0, err
	}
	return level, nil
}

func clampVolume(v int) int {
	if v < minVolume {
		return minVolume
	}
	if v > maxVolume {
		return maxVolume
	}
	return v
}

func (e *Executor) changePlaylist(ctx context.Context, zoneID, genre string) model.ActionResult {
	var playlists []model.Playlist
	err := e.guarded(ctx, func(ctx context.Context) error {
		var err error
		playlists, err = e.zones.GetPlaylists(ctx)
		return err
	})
	if err != nil {
		return model.ActionResult{Type: model.ActionPlaylistChange, ZoneID: zoneID, Error: err.Error()}
	}

	match, ok := matchPlaylist(playlists, genre)
	if !ok {
		return model.ActionResult{
			Type:   model.ActionPlaylistChange,
			ZoneID: zoneID,
			Error:  fmt.Sprintf("no playlist found for genre: %s", genre),
		}
	}

	if err := e.guarded(ctx, func(ctx context.Context) error { return e.zones.SetPlaylist(ctx, zoneID, match.ID) }); err != nil {
		return model.ActionResult{Type: model.ActionPlaylistChange, ZoneID: zoneID, Error: err.Error()}
	}

	return model.ActionResult{
		Type:     model.ActionPlaylistChange,
		ZoneID:   zoneID,
		Success:  true,
		Detail:   fmt.Sprintf("playlist set to %s", match.Name),
		Playlist: match.Name,
	}
}

// matchPlaylist picks the first catalog entry whose name contains the
// requested genre, case-insensitively.
func matchPlaylist(playlists []model.Playlist, genre string) (model.Playlist, bool) {
	needle := strings.ToLower(genre)
	for _, p := range playlists {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, true
		}
	}
	return model.Playlist{}, false
}

// diagnosePlayback checks zone status and restarts playback only when
// it is actually stopped.
func (e *Executor) diagnosePlayback(ctx context.Context, zoneID string) model.ActionResult {
	var status *model.ZoneStatus
	err := e.guarded(ctx, func(ctx context.Context) error {
		var err error
		status, err = e.zones.GetStatus(ctx, zoneID)
		return err
	})
	if err != nil {
		return model.ActionResult{Type: model.ActionStatusCheck, ZoneID: zoneID, Error: err.Error()}
	}

	if status.IsPlaying {
		return model.ActionResult{
			Type:    model.ActionStatusCheck,
			ZoneID:  zoneID,
			Success: true,
			Detail:  "music is playing normally",
		}
	}

	if err := e.guarded(ctx, func(ctx context.Context) error { return e.zones.Play(ctx, zoneID) }); err != nil {
		return model.ActionResult{Type: model.ActionPlay, ZoneID: zoneID, Error: err.Error()}
	}
	return model.ActionResult{
		Type:    model.ActionPlay,
		ZoneID:  zoneID,
		Success: true,
		Detail:  "music was stopped, now restarted",
	}
}

func (e *Executor) reportStatus(ctx context.Context, zoneID string) model.ActionResult {
	var status *model.ZoneStatus
	err := e.guarded(ctx, func(ctx context.Context) error {
		var err error
		status, err = e.zones.GetStatus(ctx, zoneID)
		return err
	})
	if err != nil {
		return model.ActionResult{Type: model.ActionStatusCheck, ZoneID: zoneID, Error: err.Error()}
	}

	detail := "nothing playing"
	if status.IsPlaying {
		detail = fmt.Sprintf("playing %s", status.Playlist)
		if status.Track != "" {
			detail = fmt.Sprintf("playing %s (%s)", status.Track, status.Playlist)
		}
	}
	return model.ActionResult{
		Type:    model.ActionStatusCheck,
		ZoneID:  zoneID,
		Success: true,
		Detail:  detail,
	}
}

func simpleResult(action model.ActionType, zoneID, detail string, err error) model.ActionResult {
	if err != nil {
		return model.ActionResult{Type: action, ZoneID: zoneID, Error: err.Error()}
	}
	return model.ActionResult{Type: action, ZoneID: zoneID, Success: true, Detail: detail}
}
