package gptbot

import "strings"

// Role identifies who authored a turn.
type Role string

const (
	HumanRole     Role = "human"
	AssistantRole Role = "assistant"
)

// Turn is one utterance in the dialogue.
type Turn struct {
	Role Role
	Text string
}

// Transcript is the dialogue so far: a fixed introduction followed by
// alternating human and assistant turns. It renders to the flat prompt
// format only when a prompt is needed. Values are never modified in place;
// Append returns a new Transcript.
type Transcript struct {
	introduction string
	humanPrefix  string
	aiPrefix     string
	turns        []Turn
}

// NewTranscript creates a transcript with the given introduction and
// line prefixes and no turns.
func NewTranscript(introduction, humanPrefix, aiPrefix string) Transcript {
	return Transcript{
		introduction: introduction,
		humanPrefix:  humanPrefix,
		aiPrefix:     aiPrefix,
	}
}

// Append returns a copy of t extended by one human/assistant exchange.
func (t Transcript) Append(message, reply string) Transcript {
	turns := make([]Turn, len(t.turns), len(t.turns)+2)
	copy(turns, t.turns)
	turns = append(turns,
		Turn{Role: HumanRole, Text: message},
		Turn{Role: AssistantRole, Text: reply},
	)
	t.turns = turns
	return t
}

// Turns returns a copy of the recorded turns.
func (t Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of recorded turns.
func (t Transcript) Len() int {
	return len(t.turns)
}

// Log renders the dialogue without the trailing human prefix, for display.
func (t Transcript) Log() string {
	var b strings.Builder
	t.render(&b)
	return b.String()
}

// Render renders the dialogue ready for the next human turn: it always ends
// with the human prefix.
func (t Transcript) Render() string {
	var b strings.Builder
	t.render(&b)
	b.WriteString(t.humanPrefix)
	return b.String()
}

// Prompt renders the candidate prompt for message: the dialogue, the new
// human turn and an open assistant turn for the model to complete.
func (t Transcript) Prompt(message string) string {
	var b strings.Builder
	t.render(&b)
	b.WriteString(t.humanPrefix)
	b.WriteString(message)
	b.WriteString("\n")
	b.WriteString(t.aiPrefix)
	return b.String()
}

func (t Transcript) render(b *strings.Builder) {
	b.WriteString(t.introduction)
	for _, turn := range t.turns {
		switch turn.Role {
		case HumanRole:
			b.WriteString(t.humanPrefix)
		case AssistantRole:
			b.WriteString(t.aiPrefix)
		}
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
}
