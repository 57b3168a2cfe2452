package responder

import (
	"fmt"

	"github.com/bma-social/support-core/internal/pipeline/model"
)

type templateSet struct {
	success string
	partial string // used when some zones succeeded and some failed
	failure string
}

var templates = map[model.Intent]templateSet{
	model.IntentVolumeAdjust: {
		success: "Volume has been adjusted successfully.",
		partial: "Volume adjusted for %d zones. %d zones had issues.",
		failure: "Unable to adjust volume at this time. Please try again.",
	},
	model.IntentPlaylistChange: {
		success: "Playlist has been changed as requested.",
		partial: "Playlist changed for %d zones. %d zones had issues.",
		failure: "Unable to change playlist. Please check the genre name.",
	},
	model.IntentMusicStop: {
		success: "Music has been paused.",
		failure: "Unable to pause music. Please try again.",
	},
	model.IntentMusicStart: {
		success: "Music is now playing.",
		failure: "Unable to start music. Please check the system.",
	},
	model.IntentMusicNotPlaying: {
		success: "I've checked and restarted the music system.",
		failure: "There seems to be an issue with the music system. Our team has been notified.",
	},
	model.IntentCurrentPlaying: {
		success: "Here's what's currently playing at your venue.",
		failure: "I couldn't check what's playing right now. Please try again.",
	},
	model.IntentGreeting: {
		success: "Hello! How can I help with your venue's music today?",
		failure: "Hello! How can I help with your venue's music today?",
	},
	model.IntentThanks: {
		success: "You're welcome! Let me know if there's anything else.",
		failure: "You're welcome! Let me know if there's anything else.",
	},
	model.IntentHelpRequest: {
		success: "I can adjust volume, change playlists, start or stop music, and check your zones. What would you like to do?",
		failure: "I can adjust volume, change playlists, start or stop music, and check your zones. What would you like to do?",
	},
}

var defaultTemplates = templateSet{
	success: "Your request has been processed.",
	failure: "Unable to process your request. Please try again.",
}

// templateReply renders the deterministic fallback for an intent and
// outcome. Every intent yields a non-empty reply.
func templateReply(intent model.Intent, results []model.ActionResult) string {
	set, ok := templates[intent]
	if !ok {
		set = defaultTemplates
	}

	success, failure := model.CountOutcomes(results)
	switch {
	case failure == 0 && success > 0:
		return set.success
	case failure > 0 && success > 0:
		if set.partial != "" {
			return fmt.Sprintf(set.partial, success, failure)
		}
		return set.success
	case failure > 0:
		return set.failure
	default:
		// No actions were attempted; the success line doubles as the
		// informational reply.
		return set.success
	}
}
