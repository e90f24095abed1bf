package entities

import "fmt"

// AllVoices lists the prebuilt voices supported for speech synthesis.
var AllVoices = []string{"Puck", "Charon", "Kore", "Fenrir", "Zephyr"}

// LanguageProfile describes one practice partner: the language, the default
// voice and the persona instruction sent to the model at session open.
type LanguageProfile struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	NativeName        string   `json:"native_name"`
	Flag              string   `json:"flag"`
	VoiceName         string   `json:"voice_name"`
	AvailableVoices   []string `json:"available_voices"`
	SystemInstruction string   `json:"system_instruction"`
}

// LanguageProfiles is the built-in practice-partner catalog.
var LanguageProfiles = []LanguageProfile{
	{
		ID:                "spanish",
		Name:              "Spanish",
		NativeName:        "Español",
		Flag:              "🇪🇸",
		VoiceName:         "Kore",
		AvailableVoices:   AllVoices,
		SystemInstruction: "You are a friendly Spanish tutor named Maria. Help the user practice. Speak primarily in Spanish.",
	},
	{
		ID:                "french",
		Name:              "French",
		NativeName:        "Français",
		Flag:              "🇫🇷",
		VoiceName:         "Fenrir",
		AvailableVoices:   AllVoices,
		SystemInstruction: "You are a French companion named Pierre. Engage in daily conversations in French.",
	},
	{
		ID:                "japanese",
		Name:              "Japanese",
		NativeName:        "日本語",
		Flag:              "🇯🇵",
		VoiceName:         "Puck",
		AvailableVoices:   AllVoices,
		SystemInstruction: "You are a polite Japanese teacher named Kenji. Speak in polite Japanese (Desu/Masu).",
	},
	{
		ID:                "english",
		Name:              "English",
		NativeName:        "English",
		Flag:              "🇺🇸",
		VoiceName:         "Zephyr",
		AvailableVoices:   AllVoices,
		SystemInstruction: "You are an English coach named Sarah. Help with accent and fluency.",
	},
	{
		ID:                "german",
		Name:              "German",
		NativeName:        "Deutsch",
		Flag:              "🇩🇪",
		VoiceName:         "Charon",
		AvailableVoices:   AllVoices,
		SystemInstruction: "You are a German friend named Hans. Chat about hobbies and travel in German.",
	},
	{
		ID:                "korean",
		Name:              "Korean",
		NativeName:        "한국어",
		Flag:              "🇰🇷",
		VoiceName:         "Kore",
		AvailableVoices:   AllVoices,
		SystemInstruction: "You are a friendly Korean tutor named Ji-Min. Help the user practice Korean. Be encouraging and polite.",
	},
	{
		ID:                "chinese",
		Name:              "Chinese",
		NativeName:        "中文",
		Flag:              "🇨🇳",
		VoiceName:         "Fenrir",
		AvailableVoices:   AllVoices,
		SystemInstruction: "You are a Mandarin Chinese practice partner named Wei. Speak clearly and help with tones.",
	},
	{
		ID:                "russian",
		Name:              "Russian",
		NativeName:        "Русский",
		Flag:              "🇷🇺",
		VoiceName:         "Charon",
		AvailableVoices:   AllVoices,
		SystemInstruction: "You are a Russian language guide named Dmitry. Teach common phrases and culture.",
	},
}

// ProfileByID looks up a language profile from the catalog.
func ProfileByID(id string) (LanguageProfile, error) {
	for _, p := range LanguageProfiles {
		if p.ID == id {
			return p, nil
		}
	}
	return LanguageProfile{}, fmt.Errorf("unknown language profile: %q", id)
}
