// Package awsadapt provides concrete translate.Backend, synthesize.Backend
// and transport.Transcriber implementations over AWS Translate, Polly, and
// Transcribe Streaming. The Translate and Polly adapters each wrap their
// calls in their own circuit breaker; the Transcribe adapter has no circuit
// breaker. Grounded directly on the teacher's internal/aws package.
package awsadapt

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/translate"

	appconfig "realtime-backend/internal/config"
)

// ClientPool owns one aws.Config and the Translate, Polly and Transcribe
// clients built from it, plus a reference count maintained through
// Acquire/Release; the adapters read the clients directly and do not touch
// the count. Grounded on the teacher's AWSClientPool.
type ClientPool struct {
	mu       sync.Mutex
	cfg      aws.Config
	refCount int
	closed   bool

	translateClient  *translate.Client
	pollyClient      *polly.Client
	transcribeClient *transcribestreaming.Client
}

// NewClientPool builds the shared aws.Config once via LoadDefaultConfig,
// using static credentials when provided (e.g. local/dev) and falling back
// to the default provider chain (IAM role, env, shared config) otherwise.
func NewClientPool(ctx context.Context, c appconfig.AWSConfig) (*ClientPool, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.Region),
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("awsadapt: load aws config: %w", err)
	}

	return &ClientPool{
		cfg:              cfg,
		translateClient:  translate.NewFromConfig(cfg),
		pollyClient:      polly.NewFromConfig(cfg),
		transcribeClient: transcribestreaming.NewFromConfig(cfg),
	}, nil
}

// Acquire increments the pool's refcount; callers should Release when done.
func (p *ClientPool) Acquire() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refCount++
}

// Release decrements the refcount.
func (p *ClientPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refCount > 0 {
		p.refCount--
	}
}

// RefCount reports the current reference count.
func (p *ClientPool) RefCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refCount
}

// IsClosed reports whether Close has been called.
func (p *ClientPool) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close marks the pool closed; safe to call once the composition root is
// shutting down and all adapters have released their reference.
func (p *ClientPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}
