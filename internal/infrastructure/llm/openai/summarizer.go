package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/quangtd/docman/internal/infrastructure/resilience"
)

const defaultRequestTimeout = 60 * time.Second

// Config tunes the hosted completion client.
type Config struct {
	Model             string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             resilience.Config
}

// Summarizer produces chat completions through the OpenAI API. The
// API key is resolved per call, so a key configured at runtime takes
// effect without a restart.
type Summarizer struct {
	keySource func() string
	model     openaisdk.ChatModel
	timeout   time.Duration
	executor  *resilience.Executor
	logger    *slog.Logger

	mu     sync.Mutex
	key    string
	client *openaisdk.Client
}

func New(keySource func() string, cfg Config, logger *slog.Logger) *Summarizer {
	if keySource == nil {
		keySource = func() string { return "" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	model := openaisdk.ChatModelGPT4oMini
	if cfg.Model != "" {
		model = openaisdk.ChatModel(cfg.Model)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Summarizer{
		keySource: keySource,
		model:     model,
		timeout:   timeout,
		executor:  resilience.NewExecutor(retryConfig(cfg)),
		logger:    logger,
	}
}

// retryConfig resolves the resilience settings for the completion
// call. An unset Retry block means the caller wants the defaults,
// which include the circuit breaker; an explicit block is taken as
// is, breaker choice included.
func retryConfig(cfg Config) resilience.Config {
	retry := cfg.Retry
	if retry == (resilience.Config{}) {
		retry = resilience.DefaultConfig()
	}
	retry.RequestsPerSecond = cfg.RequestsPerSecond
	retry.Burst = cfg.Burst
	return retry
}

func (s *Summarizer) Configured() bool {
	return strings.TrimSpace(s.keySource()) != ""
}

func (s *Summarizer) Complete(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	key := strings.TrimSpace(s.keySource())
	if key == "" {
		return "", fmt.Errorf("openai: api key not configured")
	}
	client := s.clientFor(key)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var content string
	err := s.executor.Execute(ctx, "chat_completion", func(ctx context.Context) error {
		resp, err := client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
			Messages: []openaisdk.ChatCompletionMessageParamUnion{
				openaisdk.SystemMessage(systemInstruction),
				openaisdk.UserMessage(userPrompt),
			},
			Model: s.model,
		})
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("chat completion: empty response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, classifyAPIError)
	if err != nil {
		s.logger.Warn("openai completion failed", "model", s.model, "error", err)
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// clientFor caches the SDK client until the key changes.
func (s *Summarizer) clientFor(key string) *openaisdk.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.key != key {
		client := openaisdk.NewClient(option.WithAPIKey(key))
		s.client = &client
		s.key = key
	}
	return s.client
}
