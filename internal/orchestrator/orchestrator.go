// Package orchestrator implements the Pipeline Orchestrator (C12): glues the
// Partial/Final-Result Handlers' forwarded text through translation, markup,
// synthesis, and broadcast, short-circuiting when there are no listeners.
package orchestrator

import (
	"context"
	"time"

	"realtime-backend/internal/broadcast"
	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/prosody"
	"realtime-backend/internal/synthesize"
	"realtime-backend/internal/translate"
	"realtime-backend/internal/translationcache"
	"realtime-backend/internal/types"
)

// ListenerCounter reports a session's current listener count (C13).
type ListenerCounter interface {
	GetListenerCount(sessionID string) int64
}

// TargetLanguageLister projects unique listener target languages (C14).
type TargetLanguageLister interface {
	GetUniqueTargetLanguages(sessionID string) []string
}

// DefaultDynamics is used when a caller forwards plain text with no detected
// emotion/prosody features (the usual case: DSP analyzers are out of scope
// and ported separately).
var DefaultDynamics = types.EmotionDynamics{
	Emotion:     "neutral",
	Intensity:   0,
	RateWpm:     150,
	VolumeLevel: "normal",
}

// Result is processTranscript's aggregate return value.
type Result struct {
	Success            bool
	LanguagesProcessed []string
	LanguagesFailed    []string
	BroadcastSuccess   int
	BroadcastFailure   int
	CacheHitRate       float64
	DurationMs         int64
}

// Orchestrator wires C8-C11 behind the per-transcript pipeline.
type Orchestrator struct {
	listenerCounts ListenerCounter
	targetLangs    TargetLanguageLister
	translator     *translate.Translator
	cache          *translationcache.Cache
	synthesizer    *synthesize.Synthesizer
	fanout         *broadcast.Fanout
	log            logging.Logger
	m              metrics.Sink
}

// New constructs a Pipeline Orchestrator.
func New(listenerCounts ListenerCounter, targetLangs TargetLanguageLister, translator *translate.Translator, cache *translationcache.Cache, synthesizer *synthesize.Synthesizer, fanout *broadcast.Fanout, log logging.Logger, m metrics.Sink) *Orchestrator {
	return &Orchestrator{
		listenerCounts: listenerCounts,
		targetLangs:    targetLangs,
		translator:     translator,
		cache:          cache,
		synthesizer:    synthesizer,
		fanout:         fanout,
		log:            log,
		m:              m,
	}
}

// Forward implements partial.Forwarder and final.Forwarder: a plain-text
// transcript forwarded with neutral prosody dynamics.
func (o *Orchestrator) Forward(ctx context.Context, sessionID, sourceLanguage, text string) error {
	o.ProcessTranscript(ctx, sessionID, sourceLanguage, text, DefaultDynamics)
	return nil
}

// ProcessTranscript runs the full C8->C9->C10->C11 pipeline for one
// forwarded transcript, per the seven-step component design.
func (o *Orchestrator) ProcessTranscript(ctx context.Context, sessionID, source, text string, dynamics types.EmotionDynamics) Result {
	start := time.Now()

	if o.listenerCounts.GetListenerCount(sessionID) == 0 {
		o.m.IncrCounter("orchestrator_short_circuit_total", 1, "reason", "zero_listeners")
		return Result{Success: true, DurationMs: time.Since(start).Milliseconds()}
	}

	targets := o.targetLangs.GetUniqueTargetLanguages(sessionID)
	if len(targets) == 0 {
		o.m.IncrCounter("orchestrator_short_circuit_total", 1, "reason", "no_targets")
		return Result{Success: true, DurationMs: time.Since(start).Milliseconds()}
	}

	translations := o.translator.TranslateToLanguages(ctx, source, text, targets)
	if len(translations) == 0 {
		o.log.Warn("all translations failed", logging.String("sessionId", sessionID))
		return o.fatal(targets, start)
	}

	markupByLanguage := make(map[string]string, len(translations))
	for lang, translated := range translations {
		markupByLanguage[lang] = prosody.Generate(translated, dynamics)
	}

	audioByLanguage := o.synthesizer.SynthesizeToLanguages(ctx, markupByLanguage)
	if len(audioByLanguage) == 0 {
		o.log.Warn("all synthesis failed", logging.String("sessionId", sessionID))
		return o.fatal(targets, start)
	}

	successTotal, failureTotal := 0, 0
	processed := make([]string, 0, len(audioByLanguage))
	for lang, audio := range audioByLanguage {
		res := o.fanout.BroadcastToLanguage(ctx, sessionID, lang, audio)
		successTotal += res.SuccessCount
		failureTotal += res.FailureCount
		processed = append(processed, lang)
	}

	failed := missing(targets, processed)
	hitRate, _, _ := o.cache.Stats()

	return Result{
		Success:            true,
		LanguagesProcessed: processed,
		LanguagesFailed:    failed,
		BroadcastSuccess:   successTotal,
		BroadcastFailure:   failureTotal,
		CacheHitRate:       hitRate,
		DurationMs:         time.Since(start).Milliseconds(),
	}
}

func (o *Orchestrator) fatal(targets []string, start time.Time) Result {
	return Result{
		Success:         false,
		LanguagesFailed: targets,
		DurationMs:      time.Since(start).Milliseconds(),
	}
}

func missing(all, present []string) []string {
	presentSet := make(map[string]struct{}, len(present))
	for _, p := range present {
		presentSet[p] = struct{}{}
	}
	var out []string
	for _, a := range all {
		if _, ok := presentSet[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}
