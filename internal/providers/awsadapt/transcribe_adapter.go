package awsadapt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	transcribetypes "github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"

	"realtime-backend/internal/logging"
	"realtime-backend/internal/types"
)

// transcribeLangCodes maps internal language codes to AWS Transcribe codes,
// grounded on the teacher's internal/aws/transcribe.go table.
var transcribeLangCodes = map[string]transcribetypes.LanguageCode{
	"ko": transcribetypes.LanguageCodeKoKr,
	"en": transcribetypes.LanguageCodeEnUs,
	"ja": transcribetypes.LanguageCodeJaJp,
	"zh": transcribetypes.LanguageCodeZhCn,
	"es": transcribetypes.LanguageCodeEsEs,
	"fr": transcribetypes.LanguageCodeFrFr,
	"de": transcribetypes.LanguageCodeDeDe,
}

// Transcript is one recognition result surfaced to the caller. Unlike the
// teacher's finals-only stream, both partial and final results are forwarded
// here: C4/C5/C6 need the partial stream to run sentence-boundary detection
// and rate limiting, which the teacher's chat/meeting feature never needed.
type Transcript struct {
	Text      string
	IsPartial bool
	Stability types.Optional[float64]
}

// TranscribeService starts streaming ASR sessions against Amazon Transcribe.
type TranscribeService struct {
	client *transcribestreaming.Client
}

// NewTranscribeService constructs a TranscribeService from the shared pool.
func NewTranscribeService(pool *ClientPool) *TranscribeService {
	return &TranscribeService{client: pool.transcribeClient}
}

// Stream is one active streaming transcription session for a connection.
type Stream struct {
	ctx        context.Context
	cancel     context.CancelFunc
	audioChan  chan []byte
	resultChan chan Transcript
	errChan    chan error
	log        logging.Logger

	bufferMu sync.Mutex
	buffer   []byte
}

// StartStream opens a bidirectional streaming session and begins relaying
// audio in, transcripts out, following the teacher's run/sendAudio/
// receiveResults split.
func (s *TranscribeService) StartStream(ctx context.Context, sessionID, language string, sampleRate int32, log logging.Logger) (*Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	st := &Stream{
		ctx:        streamCtx,
		cancel:     cancel,
		audioChan:  make(chan []byte, 100),
		resultChan: make(chan Transcript, 50),
		errChan:    make(chan error, 1),
		log:        log,
		buffer:     make([]byte, 0, 32000),
	}

	langCode, ok := transcribeLangCodes[language]
	if !ok {
		langCode = transcribetypes.LanguageCodeEnUs
	}

	resp, err := s.client.StartStreamTranscription(streamCtx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         langCode,
		MediaEncoding:        transcribetypes.MediaEncodingPcm,
		MediaSampleRateHertz: aws.Int32(sampleRate),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start stream transcription: %w", err)
	}

	stream := resp.GetStream()
	if stream == nil {
		cancel()
		return nil, fmt.Errorf("transcribe stream is nil")
	}

	go st.receiveResults(stream)
	go st.sendAudio(stream)

	log.Info("transcribe stream started", logging.String("sessionId", sessionID), logging.String("language", language))
	return st, nil
}

func (s *Stream) sendAudio(stream *transcribestreaming.StartStreamTranscriptionEventStream) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	defer stream.Close()

	for {
		select {
		case <-s.ctx.Done():
			s.flush(stream)
			return
		case audio, ok := <-s.audioChan:
			if !ok {
				s.flush(stream)
				return
			}
			s.bufferMu.Lock()
			s.buffer = append(s.buffer, audio...)
			s.bufferMu.Unlock()
		case <-ticker.C:
			s.flush(stream)
		}
	}
}

func (s *Stream) flush(stream *transcribestreaming.StartStreamTranscriptionEventStream) {
	s.bufferMu.Lock()
	if len(s.buffer) == 0 {
		s.bufferMu.Unlock()
		return
	}
	data := s.buffer
	s.buffer = make([]byte, 0, 32000)
	s.bufferMu.Unlock()

	event := &transcribetypes.AudioStreamMemberAudioEvent{
		Value: transcribetypes.AudioEvent{AudioChunk: data},
	}
	if err := stream.Send(s.ctx, event); err != nil {
		s.log.Warn("transcribe send audio failed", logging.Err(err))
	}
}

// receiveResults forwards every result, partial and final, unlike the
// teacher's finals-only relay.
func (s *Stream) receiveResults(stream *transcribestreaming.StartStreamTranscriptionEventStream) {
	defer close(s.resultChan)
	defer close(s.errChan)

	for event := range stream.Events() {
		e, ok := event.(*transcribetypes.TranscriptResultStreamMemberTranscriptEvent)
		if !ok || e.Value.Transcript == nil {
			continue
		}
		for _, result := range e.Value.Transcript.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := aws.ToString(result.Alternatives[0].Transcript)
			if text == "" {
				continue
			}

			t := Transcript{Text: text, IsPartial: result.IsPartial}
			if !result.IsPartial {
				t.Stability = types.Some(1.0)
			}

			select {
			case s.resultChan <- t:
			default:
				s.log.Warn("transcribe result channel full, dropping result")
			}
		}
	}

	if err := stream.Err(); err != nil {
		select {
		case s.errChan <- err:
		default:
		}
	}
}

// SendAudio enqueues one PCM chunk for transmission.
func (s *Stream) SendAudio(data []byte) error {
	select {
	case s.audioChan <- data:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("transcribe audio channel full")
	}
}

// Results returns the channel of partial and final transcripts.
func (s *Stream) Results() <-chan Transcript {
	return s.resultChan
}

// Errors returns the stream's terminal-error channel.
func (s *Stream) Errors() <-chan error {
	return s.errChan
}

// Close cancels the stream and stops audio intake.
func (s *Stream) Close() {
	s.cancel()
	close(s.audioChan)
}
