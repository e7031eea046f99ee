package engine

import (
	"regexp"
	"strings"
)

// declarationRule pairs a compiled matcher with a builder that turns the
// match into a game state.
type declarationRule struct {
	re    *regexp.Regexp
	build func(match []string) *GameState
}

// The two pattern families are evaluated in order: game-start rules first,
// then unidentified-mode rules. The first matching rule within the table
// terminates the search, so family priority is explicit in table order.
var declarationRules = []declarationRule{
	// Game-start family: phrases declaring a named game. The capture group
	// is the game's display name. The "game of X" form must precede the
	// generic "start the X game" form, which would otherwise capture the
	// article.
	{re: regexp.MustCompile(`(?i)\bstart(?:ing)?\s+a\s+game\s+of\s+(.+?)\s*[.!?]*$`), build: buildIdentified},
	{re: regexp.MustCompile(`(?i)(?:let'?s|we(?:'re| are)(?: going to)?)\s+start(?:ing)?\s+(?:the\s+)?(.+?)\s+game\b`), build: buildIdentified},
	{re: regexp.MustCompile(`(?i)\bwe(?:'re| are)\s+playing\s+(?:the\s+)?(.+?)(?:\s+game)?\s*[.!?]*$`), build: buildIdentified},
	{re: regexp.MustCompile(`(?i)\bthis\s+is\s+the\s+(.+?)\s+game\b`), build: buildIdentified},

	// Unidentified family: phrases declaring that no named game applies.
	// Existence-only match, no capture group.
	{re: regexp.MustCompile(`(?i)\bnot\s+sure\s+(?:if|whether|what)\s+(?:this|it)\s+is\s+a\s+game\b`), build: buildUnidentified},
	{re: regexp.MustCompile(`(?i)\bdon'?t\s+know\s+(?:what|which)\s+game\b`), build: buildUnidentified},
	{re: regexp.MustCompile(`(?i)\bno\s+game\s+(?:yet|defined|identified)\b`), build: buildUnidentified},
	{re: regexp.MustCompile(`(?i)\bwithout\s+a\s+(?:named\s+)?game\b`), build: buildUnidentified},
	{re: regexp.MustCompile(`(?i)\bnot\s+a\s+(?:specific|named)\s+game\b`), build: buildUnidentified},
	{re: regexp.MustCompile(`(?i)\bgame\s+is\s+unknown\b`), build: buildUnidentified},
}

func buildIdentified(match []string) *GameState {
	display := strings.TrimSpace(match[1])
	return &GameState{
		Kind:        StateIdentified,
		GameName:    slugifyGameName(display),
		DisplayName: display,
	}
}

func buildUnidentified(_ []string) *GameState {
	return &GameState{
		Kind:   StateUnidentified,
		Reason: "explicit_declaration",
	}
}

// slugifyGameName lower-cases the display name and collapses whitespace runs
// to single hyphens.
func slugifyGameName(display string) string {
	return strings.ToLower(strings.Join(strings.Fields(display), "-"))
}

// StateDetectorImpl classifies raw turn content into a game-state
// declaration. It is a pure, case-insensitive classifier: identical input
// always yields identical output and no state is kept between calls.
type StateDetectorImpl struct{}

// NewStateDetector creates a new state detector.
func NewStateDetector() *StateDetectorImpl {
	return &StateDetectorImpl{}
}

// DetectStateDeclaration evaluates content against the ordered declaration
// rules. Absence of a declaration is a first-class result, never an error;
// the caller must treat the current state as unchanged when Declared is
// false.
func (sd *StateDetectorImpl) DetectStateDeclaration(content string) Detection {
	for _, rule := range declarationRules {
		match := rule.re.FindStringSubmatch(content)
		if match == nil {
			continue
		}
		state := rule.build(match)
		detection := Detection{Declared: true, State: state}
		switch state.Kind {
		case StateIdentified:
			detection.Message = "game identified: " + state.DisplayName
		case StateUnidentified:
			detection.Message = "working without a named game"
		}
		return detection
	}
	return Detection{Declared: false}
}
