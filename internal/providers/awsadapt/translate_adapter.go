package awsadapt

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/translate"

	"realtime-backend/internal/resilience"
)

// TranslateAdapter implements translate.Backend over Amazon Translate,
// grounded on the teacher's internal/aws/translate.go.
type TranslateAdapter struct {
	pool    *ClientPool
	breaker *resilience.CircuitBreaker
}

// NewTranslateAdapter constructs a translate.Backend implementation.
func NewTranslateAdapter(pool *ClientPool) *TranslateAdapter {
	return &TranslateAdapter{
		pool:    pool,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("aws-translate")),
	}
}

// Translate calls Amazon Translate, passing through unchanged when source
// and target are identical or text is empty, matching the teacher's adapter.
func (a *TranslateAdapter) Translate(ctx context.Context, source, target, text string) (string, error) {
	if text == "" || source == target {
		return text, nil
	}

	var out string
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := a.pool.translateClient.TranslateText(ctx, &translate.TranslateTextInput{
			Text:               aws.String(text),
			SourceLanguageCode: aws.String(source),
			TargetLanguageCode: aws.String(target),
		})
		if err != nil {
			return resilience.Retryable(fmt.Errorf("translate text: %w", err))
		}
		out = aws.ToString(resp.TranslatedText)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
