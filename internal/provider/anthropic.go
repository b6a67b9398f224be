package provider

import (
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Model tiers. The large tier is the operator default and the only tier that
// receives prompt-cache directives; sub-agents run on the small tier.
const (
	LargeModel   = anthropic.ModelClaude3_7SonnetLatest
	SmallModel   = anthropic.ModelClaude3_5HaikuLatest
	DefaultModel = LargeModel
)

// APIVersion is the anthropic-version header the SDK sends on every request.
const APIVersion = "2023-06-01"

type Options struct {
	APIKey  string
	BaseURL string
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// NewAnthropicClient returns a client with SDK-level retries disabled: a
// failed completion is surfaced to the caller exactly once. Unset options fall
// back to the SDK's environment defaults.
func NewAnthropicClient(opts Options) *anthropic.Client {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	c := anthropic.NewClient(reqOpts...)
	return &c
}
