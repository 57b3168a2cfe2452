package classifier

import (
	"regexp"
	"sort"
	"strings"

	"github.com/bma-social/support-core/internal/pipeline/model"
)

const (
	entityBoost       = 1.2
	continuationBoost = 1.1
	clarifyThreshold  = 0.6
	escalateThreshold = 0.3
	alternativeFloor  = 0.3
	maxAlternatives   = 3
)

// Classifier scores messages against fixed indicator patterns. It is
// stateless and safe for concurrent use; all mutable inputs arrive as
// arguments and the result is read-only.
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

// Classify runs the full NLU pass over one message: entity extraction,
// sentiment detection, intent scoring with session continuation, and
// the clarification/escalation recommendations derived from them.
func (c *Classifier) Classify(text string, session model.SessionData) model.ClassificationResult {
	lower := strings.ToLower(text)

	entities := extractEntities(text)
	sentiment := detectSentiment(lower)

	scores := make(map[model.Intent]float64, len(intentPatterns))
	for intent, patterns := range intentPatterns {
		if s := scoreIntent(lower, intent, patterns, entities, session); s > 0 {
			scores[intent] = s
		}
	}

	primary := model.IntentUnknown
	confidence := 0.0
	var alternatives []model.ScoredIntent
	if len(scores) > 0 {
		ranked := rankIntents(scores)
		primary = ranked[0].Intent
		confidence = ranked[0].Score
		for _, alt := range ranked[1:] {
			if alt.Score > alternativeFloor && len(alternatives) < maxAlternatives {
				alternatives = append(alternatives, alt)
			}
		}
	}

	return model.ClassificationResult{
		Intent:                primary,
		Confidence:            confidence,
		Sentiment:             sentiment,
		Entities:              entities,
		RequiresClarification: needsClarification(primary, confidence, entities),
		ResponseType:          responseType(primary, sentiment, confidence),
		EscalationRecommended: shouldEscalate(primary, sentiment, confidence, lower),
		Alternatives:          alternatives,
	}
}

func extractEntities(text string) []model.Entity {
	var entities []model.Entity
	// Iterate in a fixed order so results are deterministic.
	types := make([]string, 0, len(entityPatterns))
	for t := range entityPatterns {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, entityType := range types {
		re := entityPatterns[entityType]
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			// Prefer the innermost non-empty capture over the whole match.
			for g := 1; 2*g+1 < len(loc); g++ {
				if loc[2*g] >= 0 {
					value = text[loc[2*g]:loc[2*g+1]]
					break
				}
			}
			entities = append(entities, model.Entity{
				Type:       entityType,
				Value:      strings.ToLower(value),
				Confidence: 0.9,
				Start:      loc[0],
				End:        loc[1],
			})
		}
	}
	return entities
}

func detectSentiment(lower string) model.Sentiment {
	counts := map[model.Sentiment]int{}
	for sentiment, patterns := range sentimentPatterns {
		for _, re := range patterns {
			if re.MatchString(lower) {
				counts[sentiment]++
			}
		}
	}

	// Urgency dominates, then negative vs positive.
	if counts[model.SentimentUrgent] > 0 {
		return model.SentimentUrgent
	}
	if counts[model.SentimentNegative] > counts[model.SentimentPositive] {
		return model.SentimentNegative
	}
	if counts[model.SentimentPositive] > 0 {
		return model.SentimentPositive
	}
	return model.SentimentNeutral
}

func scoreIntent(lower string, intent model.Intent, patterns []*regexp.Regexp, entities []model.Entity, session model.SessionData) float64 {
	matched := 0
	for _, re := range patterns {
		if re.MatchString(lower) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	score := float64(matched) / float64(len(patterns))

	if hasRelevantEntity(intent, entities) {
		score *= entityBoost
	}
	if session.LastIntent == intent {
		score *= continuationBoost
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func hasRelevantEntity(intent model.Intent, entities []model.Entity) bool {
	relevant, ok := relevantEntities[intent]
	if !ok {
		return false
	}
	for _, e := range entities {
		for _, t := range relevant {
			if e.Type == t {
				return true
			}
		}
	}
	return false
}

func rankIntents(scores map[model.Intent]float64) []model.ScoredIntent {
	ranked := make([]model.ScoredIntent, 0, len(scores))
	for intent, score := range scores {
		ranked = append(ranked, model.ScoredIntent{Intent: intent, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Intent < ranked[j].Intent
	})
	return ranked
}

func needsClarification(intent model.Intent, confidence float64, entities []model.Entity) bool {
	if intent == model.IntentUnknown {
		return true
	}
	if confidence < clarifyThreshold {
		return true
	}

	required, ok := requiredEntities[intent]
	if !ok {
		return false
	}
	present := make(map[string]bool, len(entities))
	for _, e := range entities {
		present[e.Type] = true
	}
	for _, t := range required {
		if !present[t] {
			return true
		}
	}
	return false
}

func responseType(intent model.Intent, sentiment model.Sentiment, confidence float64) model.ResponseType {
	switch {
	case confidence < 0.5:
		return model.ResponseClarification
	case sentiment == model.SentimentUrgent:
		return model.ResponseImmediateAction
	case intent == model.IntentComplaint:
		return model.ResponseEmpatheticResolution
	case intent == model.IntentGreeting || intent == model.IntentThanks:
		return model.ResponseSocialAck
	case intent == model.IntentVolumeAdjust || intent == model.IntentPlaylistChange ||
		intent == model.IntentMusicStop || intent == model.IntentMusicStart:
		return model.ResponseActionConfirmation
	default:
		return model.ResponseInformational
	}
}

func shouldEscalate(intent model.Intent, sentiment model.Sentiment, confidence float64, lower string) bool {
	if sentiment == model.SentimentUrgent && confidence < 0.7 {
		return true
	}
	if len(strongNegativeRe.FindAllString(lower, -1)) >= 2 {
		return true
	}
	if churnRiskRe.MatchString(lower) {
		return true
	}
	// A weak match on a real intent escalates; a message that matched
	// nothing at all only asks for clarification.
	if intent != model.IntentUnknown && confidence < escalateThreshold {
		return true
	}
	return false
}
