// Package backend defines the generation-provider contract and its
// implementations.
//
// # Overview
//
// A Backend turns a provider-agnostic message list into a provider request,
// performs the network call, parses the response, and counts tokens with the
// provider's tokenizer. Backends hold no conversation state; they are shared
// read-mostly across every conversation using the same model.
//
// # The contract
//
//	type Backend interface {
//		Model() string
//		SupportsVision() bool
//		CountTokens(text string) int
//		CountMessageTokens(msg *Message) int
//		BuildRequest(messages []Message, systemPrompt string) *GenerationRequest
//		Send(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error)
//	}
//
// Send fails with ErrBackendUnavailable on network errors, timeouts, and
// non-2xx responses, and with ErrUnsupportedContent when the request carries
// images but the model has no vision support. Token counting never fails:
// when the tokenizer is unusable, a character-count heuristic takes over.
//
// # Implementations
//
// OpenAI is the concrete implementation, built on the official openai-go SDK.
// A base-URL override lets the same implementation serve any
// OpenAI-compatible provider.
//
// # Registry
//
// The Registry resolves model ids to Backend instances at construction time.
// Selecting a model with no registered backend returns ErrModelNotSupported,
// so a misconfigured model can never reach the request path.
package backend
