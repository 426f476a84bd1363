// Package persona defines the preset voice transformation styles.
//
// A persona is the selector sent to the voice backend. It decides the prompt
// given to generative backends and the voice picked by synthesis backends.
package persona

import (
	"errors"
	"strings"
)

// Persona is one of the preset transformation styles.
type Persona string

const (
	// Hero disguises the speaker as a deep, heroic voice.
	Hero Persona = "hero"

	// Incognito renders a neutral, anonymous-sounding voice.
	Incognito Persona = "incognito"

	// Robot renders a robotic voice.
	Robot Persona = "robot"
)

// Default is the persona selected when a session starts.
const Default = Hero

// ErrUnknown is returned by Parse for anything outside the preset list.
var ErrUnknown = errors.New("unknown persona")

// RequiredMessage is the user-facing message for a missing or unknown persona.
const RequiredMessage = "You need to select a voice type."

// All lists the personas in display order.
func All() []Persona {
	return []Persona{Hero, Incognito, Robot}
}

// Parse normalises s and returns the matching persona.
func Parse(s string) (Persona, error) {
	switch p := Persona(strings.ToLower(strings.TrimSpace(s))); p {
	case Hero, Incognito, Robot:
		return p, nil
	default:
		return "", ErrUnknown
	}
}

// Valid reports whether p is a preset persona.
func (p Persona) Valid() bool {
	switch p {
	case Hero, Incognito, Robot:
		return true
	}
	return false
}

// Description is the natural-language voice description used in AI prompts.
func (p Persona) Description() string {
	switch p {
	case Hero:
		return "a deep, heroic male voice"
	case Robot:
		return "a robotic voice"
	default:
		return "a neutral, anonymous-sounding voice"
	}
}

// Label is the display name shown in the profile picker.
func (p Persona) Label() string {
	switch p {
	case Hero:
		return "Héroe"
	case Incognito:
		return "Incógnito"
	case Robot:
		return "Robot"
	default:
		return string(p)
	}
}

// ProfileName is the display name given to a saved profile recorded with p.
func (p Persona) ProfileName() string {
	return "Mi Voz " + string(p)
}
