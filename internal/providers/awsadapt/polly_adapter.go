package awsadapt

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"

	"realtime-backend/internal/resilience"
)

// voiceConfig pairs a Polly voice with the neural engine, grounded on the
// teacher's defaultVoices table in internal/aws/polly.go.
type voiceConfig struct {
	voiceID    pollytypes.VoiceId
	engine     pollytypes.Engine
	sampleRate string
}

var defaultVoices = map[string]voiceConfig{
	"ko": {voiceID: "Seoyeon", engine: pollytypes.EngineNeural, sampleRate: "16000"},
	"en": {voiceID: "Matthew", engine: pollytypes.EngineNeural, sampleRate: "16000"},
	"ja": {voiceID: "Takumi", engine: pollytypes.EngineNeural, sampleRate: "16000"},
	"zh": {voiceID: "Zhiyu", engine: pollytypes.EngineNeural, sampleRate: "16000"},
	"es": {voiceID: "Lucia", engine: pollytypes.EngineNeural, sampleRate: "16000"},
	"fr": {voiceID: "Lea", engine: pollytypes.EngineNeural, sampleRate: "16000"},
	"de": {voiceID: "Vicki", engine: pollytypes.EngineNeural, sampleRate: "16000"},
}

// PollyAdapter implements synthesize.Backend over Amazon Polly, taking SSML
// markup produced by the prosody package (C9) rather than plain text.
type PollyAdapter struct {
	pool    *ClientPool
	breaker *resilience.CircuitBreaker
}

// NewPollyAdapter constructs a synthesize.Backend implementation.
func NewPollyAdapter(pool *ClientPool) *PollyAdapter {
	return &PollyAdapter{
		pool:    pool,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("aws-polly")),
	}
}

// Synthesize renders SSML markup to PCM audio for the given language.
func (a *PollyAdapter) Synthesize(ctx context.Context, markup, language string) ([]byte, error) {
	if markup == "" {
		return nil, nil
	}

	voice, ok := defaultVoices[language]
	if !ok {
		voice = defaultVoices["en"]
	}

	var audio []byte
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := a.pool.pollyClient.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
			Text:         aws.String(markup),
			TextType:     pollytypes.TextTypeSsml,
			VoiceId:      voice.voiceID,
			Engine:       voice.engine,
			OutputFormat: pollytypes.OutputFormatPcm,
			SampleRate:   aws.String(voice.sampleRate),
		})
		if err != nil {
			return resilience.Retryable(fmt.Errorf("polly synthesize speech: %w", err))
		}
		defer resp.AudioStream.Close()

		data, err := io.ReadAll(resp.AudioStream)
		if err != nil {
			return fmt.Errorf("read polly audio stream: %w", err)
		}
		audio = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}
