package gptbot

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Persona describes who the bot pretends to be. It is rendered once into the
// prompt preamble when a Conversation is created.
type Persona struct {
	// Traits are adjectives or short phrases, e.g. "helpful", "a jokester".
	Traits []string `json:"traits"`
	// Role is the label the bot is designed to act as, e.g. "assistant".
	Role string `json:"role"`
	// Creator is credited in the seeded greeting.
	Creator string `json:"creator"`
	// MaxReplyLength adds a "less than N characters" directive when > 0.
	MaxReplyLength int `json:"max_reply_length"`
}

// DefaultMaxReplyLength is the reply length directive used when a persona
// does not set one.
const DefaultMaxReplyLength = 256

// DefaultPersona returns the stock helpful assistant persona.
func DefaultPersona() Persona {
	return Persona{
		Traits:         []string{"helpful", "creative", "clever", "very friendly"},
		Role:           "assistant",
		Creator:        "OpenAI",
		MaxReplyLength: DefaultMaxReplyLength,
	}
}

// TrollPersona returns the rude internet troll the bot was first built to
// play.
func TrollPersona() Persona {
	return Persona{
		Traits: []string{
			"rude", "stubborn", "shallow", "cocky", "aggressive", "terse",
			"unhelpful", "unpredictable", "unreasonable", "mean-spirited",
			"controversial", "simple-minded", "angry", "annoying", "passionate",
			"opinionated", "irrational", "illiterate", "argumentative", "immature",
			"a jokester", "an LGBTQIA+ advocate", "an advocate for autism awareness",
			"loves to swear profusely",
		},
		Role:           "internet troll",
		Creator:        "the infamous Minecraft griefer popbob",
		MaxReplyLength: DefaultMaxReplyLength,
	}
}

var personaPresets = map[string]func() Persona{
	"default": DefaultPersona,
	"troll":   TrollPersona,
}

// PersonaPresets returns the names accepted by PersonaByName, sorted.
func PersonaPresets() []string {
	names := make([]string, 0, len(personaPresets))
	for name := range personaPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PersonaByName returns a built-in persona. An empty name selects the
// default persona.
func PersonaByName(name string) (Persona, error) {
	if name == "" {
		return DefaultPersona(), nil
	}
	preset, ok := personaPresets[name]
	if !ok {
		return Persona{}, fmt.Errorf("unknown persona %q: must be one of %s", name, strings.Join(PersonaPresets(), ", "))
	}
	return preset(), nil
}

// Introduction renders the persona paragraph that opens every prompt,
// including the blank line that separates it from the dialogue.
func (p Persona) Introduction() string {
	var b strings.Builder
	fmt.Fprintf(&b, "The following is a conversation with an AI chatbot designed to act as a(n) %s.", p.Role)
	b.WriteString(p.traitsSentence())
	if p.MaxReplyLength > 0 {
		fmt.Fprintf(&b, " The AI responds with messages that are less than %d characters in length.", p.MaxReplyLength)
	}
	b.WriteString("\n\n")
	return b.String()
}

// Greeting returns the seeded first exchange that primes the model with the
// turn format and the creator attribution.
func (p Persona) Greeting() (human, assistant string) {
	return "Hello, who are you?",
		fmt.Sprintf("I am an AI created by %s. What do you want to talk about?", p.Creator)
}

func (p Persona) traitsSentence() string {
	switch len(p.Traits) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf(" The %s is %s.", p.Role, p.Traits[0])
	default:
		last := len(p.Traits) - 1
		return fmt.Sprintf(" The %s is %s, and %s.", p.Role, strings.Join(p.Traits[:last], ", "), p.Traits[last])
	}
}

const personaSchema = `{
  "type": "object",
  "properties": {
    "traits": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "role": {"type": "string", "minLength": 1},
    "creator": {"type": "string", "minLength": 1},
    "max_reply_length": {"type": "integer", "minimum": 0}
  },
  "required": ["role", "creator"],
  "additionalProperties": false
}`

// LoadPersona reads a JSON persona document from r and validates it before
// decoding. Every schema violation is reported in the returned error. An
// absent max_reply_length means DefaultMaxReplyLength; 0 disables the
// directive.
func LoadPersona(r io.Reader) (Persona, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Persona{}, fmt.Errorf("failed to read persona: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(personaSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return Persona{}, fmt.Errorf("failed to validate persona: %w", err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			violations = append(violations, e.String())
		}
		return Persona{}, fmt.Errorf("invalid persona: %s", strings.Join(violations, "; "))
	}

	p := Persona{MaxReplyLength: DefaultMaxReplyLength}
	if err := json.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("failed to decode persona: %w", err)
	}
	return p, nil
}
