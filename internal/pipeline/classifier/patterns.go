package classifier

import (
	"regexp"

	"github.com/bma-social/support-core/internal/pipeline/model"
)

// Indicator patterns per intent. Scores are normalized by the size of
// each set, so adding patterns to an intent does not inflate its score.
var intentPatterns = map[model.Intent][]*regexp.Regexp{
	model.IntentVolumeAdjust: {
		regexp.MustCompile(`(?i)\b(volume|sound|loud|quiet|louder|quieter|turn up|turn down|too loud|too quiet|can't hear|noisy)\b`),
		regexp.MustCompile(`(?i)\b(adjust|change|increase|decrease|raise|lower|mute|unmute)\s*(the)?\s*(volume|sound)\b`),
		regexp.MustCompile(`(?i)\b(music|audio|sound)\s*(is)?\s*(too)?\s*(loud|quiet|soft|high|low)\b`),
		regexp.MustCompile(`(?i)\b(customers? complain\w* about (volume|noise|sound))\b`),
	},
	model.IntentPlaylistChange: {
		regexp.MustCompile(`(?i)\b(play|change|switch|put on|start playing|queue)\s*(some)?\s*(jazz|rock|pop|classical|lounge|chill|upbeat|relaxing|dinner|lunch|breakfast)\b`),
		regexp.MustCompile(`(?i)\b(playlist|music|genre|style|songs?|tracks?)\s*(change|switch|different|new|other)\b`),
		regexp.MustCompile(`(?i)\b(want|need|prefer|like)\s*(to play)?\s*(different|other|new)\s*(music|playlist|genre)\b`),
		regexp.MustCompile(`(?i)\b(stop playing|don't like|hate|sick of)\s*(this|current)?\s*(music|playlist|song)\b`),
		regexp.MustCompile(`(?i)\b(mood|atmosphere|vibe|ambiance)\s*(change|different|update)\b`),
	},
	model.IntentMusicStop: {
		regexp.MustCompile(`(?i)\b(stop|pause|halt|cease|end|kill|turn off|shut off|silence)\s*(the)?\s*(music|audio|sound|playback|playlist)\b`),
		regexp.MustCompile(`(?i)\b(music|audio|sound|playlist)\s*(stop|pause|off|silence)\b`),
		regexp.MustCompile(`(?i)\b(emergency stop|immediately stop|urgent stop)\b`),
		regexp.MustCompile(`(?i)\b(no music|silence please|quiet time)\b`),
	},
	model.IntentMusicStart: {
		regexp.MustCompile(`(?i)\b(start|play|resume|begin|turn on|activate)\s*(the)?\s*(music|audio|sound|playlist)\b`),
		regexp.MustCompile(`(?i)\b(music|audio|playlist)\s*(start|play|on|resume)\b`),
		regexp.MustCompile(`(?i)\b(ready to open|opening time|start service)\b`),
		regexp.MustCompile(`(?i)\b(resume playback|continue playing|unpause)\b`),
	},
	model.IntentScheduleMusic: {
		regexp.MustCompile(`(?i)\b(schedule|set|program|plan)\s*(the)?\s*(music|playlist|audio)\s*(for|at)?\s*(\d+|tomorrow|tonight|evening|morning)\b`),
		regexp.MustCompile(`(?i)\b(play|start)\s*(music|playlist)?\s*(at|from|after)\s*(\d+:\d+|\d+\s*(am|pm)|midnight|noon)\b`),
		regexp.MustCompile(`(?i)\b(event|party|celebration|special)\s*(at|on)?\s*(\d+|tomorrow|tonight|next week)\b`),
		regexp.MustCompile(`(?i)\b(timer|automatic|auto)\s*(play|start|stop)\b`),
	},
	model.IntentMusicNotPlaying: {
		regexp.MustCompile(`(?i)\b(music|audio|sound|playlist)\s*(stopped|not playing|dead|silent|no sound|isn't working|not working)\b`),
		regexp.MustCompile(`(?i)\b(no music|no sound|no audio|nothing playing|dead silence)\b`),
		regexp.MustCompile(`(?i)\b(can't hear|don't hear|not hearing)\s*(any)?\s*(music|sound|audio)\b`),
		regexp.MustCompile(`(?i)\b(system|player|device)\s*(down|offline|not responding|crashed)\b`),
		regexp.MustCompile(`(?i)\b(stopped working|broke|broken|failed|failure)\b`),
	},
	model.IntentAppIssue: {
		regexp.MustCompile(`(?i)\b(app|application|software)\s*(issue|problem|bug|crash|error|not working|frozen|stuck)\b`),
		regexp.MustCompile(`(?i)\b(can't|cannot|unable to)\s*(login|access|connect|open|use)\s*(the)?\s*(app|system)\b`),
		regexp.MustCompile(`(?i)\b(error message|error code|warning|alert)\b`),
		regexp.MustCompile(`(?i)\b(keeps crashing|won't open|not responding)\b`),
	},
	model.IntentZoneIssue: {
		regexp.MustCompile(`(?i)\b(zone|area|section|room|floor)\s*(\d+|one|two|three|main|bar|dining|patio|terrace)?\s*(issue|problem|not working|dead|offline)\b`),
		regexp.MustCompile(`(?i)\b(only|just|specific)\s*(zone|area|section)\s*(working|not working|has sound)\b`),
		regexp.MustCompile(`(?i)\b(multi.?zone|multiple zones?)\s*(issue|problem|failure)\b`),
		regexp.MustCompile(`(?i)\b(speaker|device)\s*(in)?\s*(zone|area|room)\s*(\d+|[a-z]+)?\s*(not working|offline|dead)\b`),
	},
	model.IntentCurrentPlaying: {
		regexp.MustCompile(`(?i)\b(what's?|what is)\s*(playing|on|current)\b`),
		regexp.MustCompile(`(?i)\b(current|now playing|active)\s*(song|music|playlist|track)\b`),
		regexp.MustCompile(`(?i)\b(tell me|show me|display)\s*(the)?\s*(playlist|music|song)\b`),
		regexp.MustCompile(`(?i)\b(which|what)\s*(playlist|genre|music)\s*(is this|playing now)\b`),
	},
	model.IntentComplaint: {
		regexp.MustCompile(`(?i)\b(terrible|awful|horrible|worst|unacceptable|disgusting|pathetic)\b`),
		regexp.MustCompile(`(?i)\b(complain|complaint|unhappy|dissatisfied|frustrated|angry|upset|mad)\b`),
		regexp.MustCompile(`(?i)\b(this is ridiculous|can't believe|never works|always problems)\b`),
		regexp.MustCompile(`(?i)\b(waste of money|cancel service|switch provider)\b`),
	},
	model.IntentGreeting: {
		regexp.MustCompile(`(?i)^(hi|hello|hey|good morning|good afternoon|good evening|greetings)\b`),
		regexp.MustCompile(`(?i)\b(how are you|how's it going|what's up)\b`),
		regexp.MustCompile(`(?i)^(morning|afternoon|evening)\b`),
	},
	model.IntentThanks: {
		regexp.MustCompile(`(?i)\b(thank you|thanks|thx|appreciate|grateful|cheers)\b`),
		regexp.MustCompile(`(?i)\b(perfect|great|excellent|awesome|wonderful)\s*(thanks|thank you)?\b`),
		regexp.MustCompile(`(?i)\b(that's all|all good|sorted|fixed|done)\b`),
	},
	model.IntentHelpRequest: {
		regexp.MustCompile(`(?i)\b(help|assist|support|guide|explain|how to|how do)\b`),
		regexp.MustCompile(`(?i)\b(don't know|not sure|confused|lost|stuck)\b`),
		regexp.MustCompile(`(?i)\b(what can you do|what are options|menu|commands)\b`),
	},
}

var entityPatterns = map[string]*regexp.Regexp{
	model.EntityZone:            regexp.MustCompile(`(?i)\b(?:zone|area|section|room|floor)\s*(\d+|one|two|three|four|five|main|bar|dining|patio|terrace|entrance|kitchen|restroom|lobby|vip)\b|\b(lobby|patio|terrace|entrance|kitchen|restroom)\b`),
	model.EntityVolumeLevel:     regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:%|percent)?\b`),
	model.EntityVolumeDirection: regexp.MustCompile(`(?i)\b(up|down|increase|decrease|raise|lower|higher|louder|quieter|softer)\b`),
	model.EntityGenre:           regexp.MustCompile(`(?i)\b(jazz|rock|pop|classical|lounge|chill|upbeat|relaxing|dinner|lunch|breakfast|acoustic|electronic|latin|reggae|country|blues|soul|funk|disco|house|techno)\b`),
	model.EntityTime:            regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm)|morning|afternoon|evening|night|midnight|noon|now|immediately|urgent|asap)\b`),
	model.EntityDuration:        regexp.MustCompile(`(?i)\b(\d+)\s*(?:minutes?|mins?|hours?|hrs?)\b`),
	model.EntityDay:             regexp.MustCompile(`(?i)\b(today|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday|weekend|weekday)\b`),
}

var sentimentPatterns = map[model.Sentiment][]*regexp.Regexp{
	model.SentimentUrgent: {
		regexp.MustCompile(`(?i)\b(urgent|emergency|immediately|asap|right now|critical|important)\b`),
		regexp.MustCompile(`(?i)\b(help!|please help|need help now)\b`),
		regexp.MustCompile(`(!{2,}|\?{2,})`),
		regexp.MustCompile(`(?i)\b(customers? complaining|customers? leaving|losing business)\b`),
	},
	model.SentimentNegative: {
		regexp.MustCompile(`(?i)\b(not working|broken|failed|error|issue|problem|trouble|wrong)\b`),
		regexp.MustCompile(`(?i)\b(frustrated|annoyed|disappointed|unhappy|upset|angry)\b`),
		regexp.MustCompile(`(?i)\b(terrible|awful|horrible|bad|poor|worst|unacceptable)\b`),
		regexp.MustCompile(`(?i)\b(can't|cannot|won't|unable|impossible)\b`),
	},
	model.SentimentPositive: {
		regexp.MustCompile(`(?i)\b(great|excellent|perfect|wonderful|awesome|fantastic|amazing)\b`),
		regexp.MustCompile(`(?i)\b(works|working|fixed|solved|good|nice|love|like)\b`),
		regexp.MustCompile(`(?i)\b(thank you|thanks|appreciate|grateful)\b`),
	},
}

// Entities that make a matched intent more likely. Intents without an
// entry get no entity boost.
var relevantEntities = map[model.Intent][]string{
	model.IntentVolumeAdjust:   {model.EntityZone, model.EntityVolumeLevel, model.EntityVolumeDirection},
	model.IntentPlaylistChange: {model.EntityGenre, model.EntityZone},
	model.IntentMusicStart:     {model.EntityZone, model.EntityTime},
	model.IntentMusicStop:      {model.EntityZone, model.EntityTime},
	model.IntentScheduleMusic:  {model.EntityTime, model.EntityDay, model.EntityDuration},
	model.IntentZoneIssue:      {model.EntityZone},
	model.IntentCurrentPlaying: {model.EntityZone},
}

// Entities an intent cannot be acted on without. Missing ones force a
// clarification turn.
var requiredEntities = map[model.Intent][]string{
	model.IntentVolumeAdjust:   {model.EntityZone, model.EntityVolumeDirection},
	model.IntentPlaylistChange: {model.EntityGenre},
	model.IntentScheduleMusic:  {model.EntityTime},
	model.IntentZoneIssue:      {model.EntityZone},
}

var (
	strongNegativeRe = regexp.MustCompile(`(?i)\b(hate|terrible|awful|worst|unacceptable)\b`)
	churnRiskRe      = regexp.MustCompile(`(?i)\b(cancel|leave|switch|competitor|sue|legal|lawyer)\b`)
)
