package domain

import "strings"

// Voice is a text-to-speech voice the avatar provider accepts.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

const DefaultVoiceID = "en-US-JennyNeural"

// Voices lists the Microsoft neural voices commonly used with the avatar
// provider. The first entry per language is that language's default.
func Voices() []Voice {
	return []Voice{
		{ID: "en-US-JennyNeural", Name: "Jenny (Female, US)", Language: "en-US"},
		{ID: "en-US-GuyNeural", Name: "Guy (Male, US)", Language: "en-US"},
		{ID: "en-GB-SoniaNeural", Name: "Sonia (Female, UK)", Language: "en-GB"},
		{ID: "en-GB-RyanNeural", Name: "Ryan (Male, UK)", Language: "en-GB"},
		{ID: "en-AU-NatashaNeural", Name: "Natasha (Female, AU)", Language: "en-AU"},
		{ID: "en-AU-WilliamNeural", Name: "William (Male, AU)", Language: "en-AU"},
	}
}

// LookupVoice returns the catalog entry with the given id.
func LookupVoice(id string) (Voice, bool) {
	for _, v := range Voices() {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// DefaultVoiceFor returns the first catalog voice for a BCP 47 locale.
func DefaultVoiceFor(locale string) (Voice, bool) {
	for _, v := range Voices() {
		if strings.EqualFold(v.Language, locale) {
			return v, true
		}
	}
	return Voice{}, false
}
