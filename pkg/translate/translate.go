// Package translate turns natural-language instructions into DFL programs.
//
// A Translator never fails: when the text-generation service cannot produce a
// program it returns FailureCode, a comment-only program that executes as a
// no-op.
package translate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/akhildatla/dfagent/pkg/interp"
	"github.com/akhildatla/dfagent/pkg/llm"
)

// FailureCode is returned when no program could be generated.
const FailureCode Code = "# error: code generation failed"

// Code is a generated DFL program. It is untrusted data.
type Code string

// IsFailure reports whether c is FailureCode.
func (c Code) IsFailure() bool {
	return c == FailureCode
}

func (c Code) String() string {
	return string(c)
}

// Intent selects the prompt family and capability set.
type Intent int

const (
	IntentClean Intent = iota
	IntentTransform
	IntentVisualize
)

func (i Intent) String() string {
	switch i {
	case IntentTransform:
		return "transform"
	case IntentVisualize:
		return "visualize"
	default:
		return "clean"
	}
}

// ParseIntent maps a name to an Intent.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clean":
		return IntentClean, nil
	case "transform":
		return IntentTransform, nil
	case "visualize", "visualise", "plot":
		return IntentVisualize, nil
	}
	return IntentClean, fmt.Errorf("unknown intent %q", s)
}

// Capabilities returns the capability set the executor exposes for i.
func (i Intent) Capabilities() interp.CapabilitySet {
	switch i {
	case IntentTransform:
		return interp.Base | interp.Extended
	case IntentVisualize:
		return interp.Charting
	default:
		return interp.Base
	}
}

// Sampling is the generation budget for one intent.
type Sampling struct {
	Temperature float64
	MaxTokens   int
}

// DefaultSampling returns the sampling used for i unless overridden.
func DefaultSampling(i Intent) Sampling {
	switch i {
	case IntentTransform:
		return Sampling{Temperature: 0.4, MaxTokens: 400}
	case IntentVisualize:
		return Sampling{Temperature: 0.4, MaxTokens: 500}
	default:
		return Sampling{Temperature: 0.4, MaxTokens: 300}
	}
}

// Option configures a Translator.
type Option func(*Translator)

// WithSampling overrides the sampling for one intent.
func WithSampling(i Intent, s Sampling) Option {
	return func(t *Translator) {
		t.sampling[i] = s
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

// Translator builds prompts and delegates to an llm.Client.
type Translator struct {
	client   llm.Client
	sampling map[Intent]Sampling
	logger   *zap.Logger
}

// New creates a Translator over client.
func New(client llm.Client, opts ...Option) *Translator {
	t := &Translator{
		client: client,
		sampling: map[Intent]Sampling{
			IntentClean:     DefaultSampling(IntentClean),
			IntentTransform: DefaultSampling(IntentTransform),
			IntentVisualize: DefaultSampling(IntentVisualize),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Sampling returns the sampling used for i.
func (t *Translator) Sampling(i Intent) Sampling {
	return t.sampling[i]
}

// Request builds the collaborator request for an instruction.
func (t *Translator) Request(instruction string, columns []string, intent Intent) llm.Request {
	s := t.Sampling(intent)
	return llm.Request{
		System:      SystemPrompt(intent, columns),
		User:        instruction,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
}

// Translate asks the collaborator for a program. Any failure, including an
// empty reply, yields FailureCode.
func (t *Translator) Translate(ctx context.Context, instruction string, columns []string, intent Intent) Code {
	if t.client == nil {
		t.logger.Error("code generation failed", zap.Stringer("intent", intent), zap.Error(llm.ErrNoAPIKey))
		return FailureCode
	}

	out, err := t.client.Complete(ctx, t.Request(instruction, columns, intent))
	if err == nil && strings.TrimSpace(out) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		t.logger.Error("code generation failed",
			zap.Stringer("intent", intent),
			zap.String("instruction", instruction),
			zap.Error(err))
		return FailureCode
	}

	code := Code(strings.TrimSpace(out))
	t.logger.Debug("generated code",
		zap.Stringer("intent", intent),
		zap.String("instruction", instruction),
		zap.Stringer("code", code))
	return code
}
