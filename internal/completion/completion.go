package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/petasbytes/turnloop/internal/provider"
	"github.com/petasbytes/turnloop/internal/telemetry"
	"github.com/petasbytes/turnloop/memory"
	"github.com/petasbytes/turnloop/tools"
)

const defaultMaxTokens = 1024

type Request struct {
	// System segments are sent in order; empty segments are dropped.
	System    []string
	Tools     []tools.ToolDefinition
	Messages  []memory.Message
	Model     anthropic.Model
	MaxTokens int64
}

type Usage struct {
	InputTokens     int64 `json:"input_tokens"`
	OutputTokens    int64 `json:"output_tokens"`
	CacheReadTokens int64 `json:"cache_read_tokens"`
}

type Response struct {
	Role       memory.Role
	Content    []memory.Block
	Usage      Usage
	Model      string
	StopReason string
}

// Message returns the reply as a history entry.
func (r *Response) Message() memory.Message {
	return memory.Message{Role: r.Role, Content: r.Content}
}

func (r *Response) ToolUses() []memory.Block { return r.Message().ToolUses() }
func (r *Response) Text() string             { return r.Message().Text() }

type Config struct {
	// LargeModel is the tier that receives cache directives. Defaults to
	// provider.LargeModel.
	LargeModel anthropic.Model
	Telemetry  *telemetry.Emitter
	Log        *slog.Logger
}

type Client struct {
	api   *anthropic.Client
	large anthropic.Model
	tel   *telemetry.Emitter
	log   *slog.Logger
}

func New(api *anthropic.Client, cfg Config) *Client {
	if cfg.LargeModel == "" {
		cfg.LargeModel = provider.LargeModel
	}
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{api: api, large: cfg.LargeModel, tel: cfg.Telemetry, log: cfg.Log}
}

// Complete performs exactly one request.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = provider.DefaultModel
	}
	params := c.params(req)

	start := time.Now()
	msg, err := c.api.Messages.New(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		err = classify(err)
		c.emit(ctx, req.Model, nil, elapsed, err)
		return nil, err
	}

	resp, err := c.decode(msg)
	c.emit(ctx, req.Model, resp, elapsed, err)
	if err != nil {
		return nil, err
	}
	c.log.Debug("completion",
		"model", resp.Model,
		"stop_reason", resp.StopReason,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", elapsed,
	)
	return resp, nil
}

// cacheable reports whether model gets prompt-cache directives.
func (c *Client) cacheable(model anthropic.Model) bool {
	return model == c.large
}

func (c *Client) params(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     req.Model,
		MaxTokens: maxTokens,
		Messages:  toMessageParams(req.Messages),
	}
	cache := c.cacheable(req.Model)

	for _, s := range req.System {
		if strings.TrimSpace(s) == "" {
			continue
		}
		params.System = append(params.System, anthropic.TextBlockParam{Text: s})
	}
	if cache && len(params.System) > 0 {
		params.System[len(params.System)-1].CacheControl = anthropic.NewCacheControlEphemeralParam()
	}

	if len(req.Tools) > 0 {
		params.Tools = make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for i, t := range req.Tools {
			tp := &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: t.InputSchema,
			}
			if cache && i == len(req.Tools)-1 {
				tp.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: tp})
		}
	}
	return params
}

// decode validates the raw envelope before trusting the typed view of it.
// Missing usage is tolerated as zero counts.
func (c *Client) decode(msg *anthropic.Message) (*Response, error) {
	raw := msg.RawJSON()
	if raw != "" {
		if err := validateEnvelope(raw); err != nil {
			return nil, err
		}
	} else if msg.Role != "assistant" {
		return nil, &MalformedResponseError{Reason: "missing role"}
	}

	resp := &Response{
		Role:       memory.RoleAssistant,
		Content:    make([]memory.Block, 0, len(msg.Content)),
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:     msg.Usage.InputTokens,
			OutputTokens:    msg.Usage.OutputTokens,
			CacheReadTokens: msg.Usage.CacheReadInputTokens,
		},
	}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content = append(resp.Content, memory.NewText(v.Text))
		case anthropic.ToolUseBlock:
			input := []byte(v.JSON.Input.Raw())
			if len(input) == 0 {
				input = []byte(`{}`)
			}
			resp.Content = append(resp.Content, memory.NewToolUse(v.ID, v.Name, input))
		default:
			c.log.Debug("skipping content block", "type", block.Type)
		}
	}
	return resp, nil
}

func validateEnvelope(raw string) error {
	if !gjson.Valid(raw) {
		return &MalformedResponseError{Reason: "invalid JSON", Body: raw}
	}
	role := gjson.Get(raw, "role")
	if !role.Exists() {
		return &MalformedResponseError{Reason: "missing role", Body: raw}
	}
	if role.String() != "assistant" {
		return &MalformedResponseError{Reason: fmt.Sprintf("unexpected role %q", role.String()), Body: raw}
	}
	content := gjson.Get(raw, "content")
	if !content.IsArray() {
		return &MalformedResponseError{Reason: "missing content", Body: raw}
	}
	for i, block := range content.Array() {
		if block.Get("type").String() != "tool_use" {
			continue
		}
		if block.Get("id").String() == "" || block.Get("name").String() == "" {
			return &MalformedResponseError{Reason: fmt.Sprintf("tool_use block %d lacks id or name", i), Body: raw}
		}
	}
	return nil
}

// classify maps SDK errors onto this package's error types.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		body := apiErr.RawJSON()
		if body == "" {
			body = rawBody(apiErr.Response)
		}
		return &ServiceError{
			Status:  apiErr.StatusCode,
			Body:    body,
			Message: gjson.Get(body, "error.message").String(),
		}
	}
	return fmt.Errorf("completion: %w", err)
}

// maxErrorBody caps how much of a non-JSON error page is kept.
const maxErrorBody = 4 << 10

// rawBody reads an error response body the SDK could not parse as JSON, such
// as an HTML page from a proxy. The SDK leaves the body readable for this.
func rawBody(res *http.Response) string {
	if res == nil || res.Body == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return strings.TrimSpace(string(b))
}

func (c *Client) emit(ctx context.Context, model anthropic.Model, resp *Response, elapsed time.Duration, err error) {
	if !c.tel.Enabled() {
		return
	}
	turnID, _ := telemetry.TurnIDFromContext(ctx)
	fields := map[string]any{
		"turn_id":     turnID,
		"model":       string(model),
		"duration_ms": elapsed.Milliseconds(),
		"status":      "ok",
		"cached":      c.cacheable(model),
	}
	if resp != nil {
		fields["input_tokens"] = resp.Usage.InputTokens
		fields["output_tokens"] = resp.Usage.OutputTokens
		fields["cache_read_tokens"] = resp.Usage.CacheReadTokens
		fields["stop_reason"] = resp.StopReason
	}
	var se *ServiceError
	var me *MalformedResponseError
	switch {
	case errors.As(err, &se):
		fields["status"] = se.Status
	case errors.As(err, &me):
		fields["status"] = "malformed"
	case err != nil:
		fields["status"] = "error"
	}
	c.tel.Emit("completion", fields)
}
