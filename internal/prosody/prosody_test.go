package prosody

import (
	"strings"
	"testing"

	"realtime-backend/internal/types"
)

func TestEscapeReservedCharacters(t *testing.T) {
	got := Escape(`<a> & "b" 'c'`)
	want := `&lt;a&gt; &amp; &quot;b&quot; &apos;c&apos;`
	if got != want {
		t.Errorf("Escape = %q, want %q", got, want)
	}
}

func TestGenerateWrapsInSpeak(t *testing.T) {
	out := Generate("hello", types.EmotionDynamics{RateWpm: 150, VolumeLevel: "normal"})
	if !strings.HasPrefix(out, "<speak>") || !strings.HasSuffix(out, "</speak>") {
		t.Errorf("Generate output not wrapped in <speak>: %q", out)
	}
}

func TestGenerateEscapesText(t *testing.T) {
	out := Generate(`<script>`, types.EmotionDynamics{RateWpm: 150})
	if strings.Contains(out, "<script>") {
		t.Errorf("raw unescaped text leaked into markup: %q", out)
	}
}

func TestGenerateRateLevels(t *testing.T) {
	cases := []struct {
		wpm  int
		want string
	}{
		{100, "slow"},
		{150, "medium"},
		{180, "fast"},
		{250, "x-fast"},
	}
	for _, c := range cases {
		out := Generate("hi", types.EmotionDynamics{RateWpm: c.wpm})
		if !strings.Contains(out, `rate="`+c.want+`"`) {
			t.Errorf("wpm=%d: out = %q, want rate=%q", c.wpm, out, c.want)
		}
	}
}

func TestGenerateVolumeLevels(t *testing.T) {
	cases := []struct {
		level string
		want  string
	}{
		{"whisper", "x-soft"},
		{"soft", "soft"},
		{"loud", "loud"},
		{"normal", "medium"},
		{"", "medium"},
	}
	for _, c := range cases {
		out := Generate("hi", types.EmotionDynamics{VolumeLevel: c.level})
		if !strings.Contains(out, `volume="`+c.want+`"`) {
			t.Errorf("level=%q: out = %q, want volume=%q", c.level, out, c.want)
		}
	}
}

func TestGenerateStrongEmphasisOnHighIntensityEmotion(t *testing.T) {
	out := Generate("hi", types.EmotionDynamics{Emotion: "angry", Intensity: 0.9})
	if !strings.Contains(out, `<emphasis level="strong">`) {
		t.Errorf("expected strong emphasis, got %q", out)
	}
}

func TestGenerateNoEmphasisBelowIntensityThreshold(t *testing.T) {
	out := Generate("hi", types.EmotionDynamics{Emotion: "angry", Intensity: 0.2})
	if strings.Contains(out, "<emphasis") {
		t.Errorf("low-intensity emotion should not trigger emphasis, got %q", out)
	}
}

func TestGenerateBreakBeforeSadSpeech(t *testing.T) {
	out := Generate("hi", types.EmotionDynamics{Emotion: "sad"})
	if !strings.Contains(out, `<break time="300ms"/>`) {
		t.Errorf("expected a leading break for sad emotion, got %q", out)
	}
}
