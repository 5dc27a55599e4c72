// Package prosody implements the Prosody-Markup Generator (C9): turns plain
// text plus detected emotion/rate/volume dynamics into an SSML-flavored
// markup string for the synthesis backend.
package prosody

import (
	"fmt"
	"strings"

	"realtime-backend/internal/types"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape XML-escapes the five reserved characters.
func Escape(text string) string {
	return escaper.Replace(text)
}

// Generate builds `<speak>...</speak>` markup: rate prosody outermost, then
// volume prosody, then emphasis (or a leading break) innermost.
func Generate(text string, d types.EmotionDynamics) string {
	escaped := Escape(text)
	inner := applyEmphasis(escaped, d)
	withVolume := fmt.Sprintf(`<prosody volume="%s">%s</prosody>`, volumeLevel(d.VolumeLevel), inner)
	withRate := fmt.Sprintf(`<prosody rate="%s">%s</prosody>`, rateLevel(d.RateWpm), withVolume)
	return "<speak>" + withRate + "</speak>"
}

func rateLevel(wpm int) string {
	switch {
	case wpm < 120:
		return "slow"
	case wpm < 170:
		return "medium"
	case wpm < 200:
		return "fast"
	default:
		return "x-fast"
	}
}

func volumeLevel(level string) string {
	switch level {
	case "whisper":
		return "x-soft"
	case "soft":
		return "soft"
	case "loud":
		return "loud"
	default:
		return "medium"
	}
}

func applyEmphasis(escapedText string, d types.EmotionDynamics) string {
	switch d.Emotion {
	case "angry", "excited", "surprised":
		if d.Intensity >= 0.7 {
			return fmt.Sprintf(`<emphasis level="strong">%s</emphasis>`, escapedText)
		}
	case "sad", "fearful":
		return `<break time="300ms"/>` + escapedText
	}
	return escapedText
}
