package openai

import (
	"sync"

	"github.com/newstrace/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// TraceOpenAIClient is an ai.Client backed by OpenAI-compatible endpoints.
// Embeddings and chat completions may be served by different endpoints, so
// it manages a separate client for each.
//
// A TraceOpenAIClient should be created using NewTraceOpenAIClient.
type TraceOpenAIClient struct {
	embeddingModel string
	chatModel      string

	chatURL string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	timeoutMin int

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewTraceOpenAIClientParams defines the configuration parameters for
// creating a new TraceOpenAIClient.
//
// EmbeddingURL and EmbeddingKey configure the embedding API endpoint;
// ChatURL and ChatKey configure the chat/completion API endpoint. An empty
// key disables the corresponding client.
type NewTraceOpenAIClientParams struct {
	EmbeddingModel string
	ChatModel      string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	TimeoutMin            int
	MaxConcurrentRequests int64
}

// NewTraceOpenAIClient creates and returns a new TraceOpenAIClient
// configured with the provided parameters.
func NewTraceOpenAIClient(
	params NewTraceOpenAIClientParams,
) *TraceOpenAIClient {
	timeoutMin := params.TimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 8
	}

	return &TraceOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		chatModel:      params.ChatModel,

		chatURL: params.ChatURL,

		reqLock: semaphore.NewWeighted(maxReq),

		timeoutMin: timeoutMin,

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
