// Package generation derives substance programs from uploaded images through an
// external vision model.
//
// The Generator owns the domain rules (prompting, cleaning the reply, the
// GenerationError contract); a Client carries one request to the model.
// AnthropicClient talks to the Anthropic Messages API.
package generation
