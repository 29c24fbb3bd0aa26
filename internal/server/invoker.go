package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ironsheep/glm-vision-mcp/internal/imaging"
	"github.com/ironsheep/glm-vision-mcp/internal/response"
	"github.com/ironsheep/glm-vision-mcp/internal/vision"
)

// maxFaultMessage bounds remote fault text copied into an envelope.
const maxFaultMessage = 200

// Analyzer answers a question about one encoded image. *vision.Client
// implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req vision.AnalyzeRequest) (string, error)
}

// State is a step of one read_image invocation.
type State int

const (
	StateReceivedArgs State = iota
	StateArgsValidated
	StateFileValidated
	StateEncoded
	StateRemoteCallSucceeded
	StateResponseReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateReceivedArgs:
		return "received_args"
	case StateArgsValidated:
		return "args_validated"
	case StateFileValidated:
		return "file_validated"
	case StateEncoded:
		return "encoded"
	case StateRemoteCallSucceeded:
		return "remote_call_succeeded"
	case StateResponseReady:
		return "response_ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Invoker runs the read_image pipeline: argument checks, file validation,
// transcoding, the vision call and envelope construction.
//
// An Invoker is built once and shared by all requests. It holds only
// read-only collaborators; every request owns its handle, info and
// transcode result. A nil Analyzer puts the Invoker in a degraded state
// where every request fails before any remote call.
type Invoker struct {
	validator  *imaging.Validator
	transcoder *imaging.Transcoder
	analyzer   Analyzer
	responses  response.Builder
	logger     *slog.Logger
}

// NewInvoker wires the pipeline stages together.
func NewInvoker(v *imaging.Validator, t *imaging.Transcoder, analyzer Analyzer, logger *slog.Logger) *Invoker {
	if v == nil {
		v = imaging.NewValidator(imaging.DefaultMaxFileSize)
	}
	if t == nil {
		t = imaging.NewTranscoder(v, imaging.DefaultMaxDimension, imaging.DefaultQuality)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		validator:  v,
		transcoder: t,
		analyzer:   analyzer,
		logger:     logger,
	}
}

// Ready reports whether a vision client is configured.
func (inv *Invoker) Ready() bool {
	return inv.analyzer != nil
}

// Invoke runs read_image with the raw tools/call arguments. It always returns
// an envelope, including when a stage panics.
func (inv *Invoker) Invoke(ctx context.Context, raw json.RawMessage) response.Envelope {
	_, env := inv.run(ctx, raw)
	return env
}

// run is Invoke that also reports the last state reached.
func (inv *Invoker) run(ctx context.Context, raw json.RawMessage) (state State, env response.Envelope) {
	log := inv.logger.With("tool", ToolReadImage, "request_id", uuid.NewString())
	start := time.Now()
	state = StateReceivedArgs

	defer func() {
		if r := recover(); r != nil {
			log.Error("read_image panicked", "state", state, "panic", r, "stack", string(debug.Stack()))
			state = StateError
			env = inv.responses.Error(fmt.Sprintf("internal error: %v", r), response.CodeUnknown)
		}
		log.Debug("read_image finished", "state", state, "success", env.Success, "elapsed", time.Since(start))
	}()

	fail := func(from State, msg string, code response.ErrorCode) (State, response.Envelope) {
		log.Warn("read_image failed", "state", from, "error_code", code, "error", msg)
		return StateError, inv.responses.Error(msg, code)
	}

	args, err := parseArguments(raw)
	if err != nil {
		return fail(state, err.Error(), response.CodeValidation)
	}
	params, msg := validateArguments(args)
	if msg != "" {
		return fail(state, msg, response.CodeValidation)
	}
	state = StateArgsValidated
	log = log.With("image_path", params.ImagePath)

	handle, err := inv.validator.Validate(params.ImagePath)
	if err != nil {
		return fail(state, err.Error(), response.CodeUnknown)
	}
	state = StateFileValidated
	log.Debug("image validated", "format", handle.Format, "size", handle.Size)

	result, err := inv.transcoder.Encode(handle, 0, 0)
	if err != nil {
		log.Error("image encoding failed", "error", err)
		return fail(state, "image encoding failed", response.CodeUnknown)
	}
	state = StateEncoded
	log.Info("image encoded",
		"original", fmt.Sprintf("%dx%d", result.Original.Width, result.Original.Height),
		"encoded", fmt.Sprintf("%dx%d", result.Width, result.Height),
		"mode", result.Original.Mode,
		"encoded_size", result.EncodedSize,
		"compression_ratio", result.CompressionRatio,
	)

	if inv.analyzer == nil {
		return fail(state, "vision client not initialized", response.CodeUnknown)
	}

	text, err := inv.analyzer.Analyze(ctx, vision.AnalyzeRequest{
		DataURI:     result.DataURI,
		Prompt:      params.Prompt,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return fail(state, "image analysis failed: "+truncate(err.Error(), maxFaultMessage), response.CodeUnknown)
	}
	state = StateRemoteCallSucceeded
	log.Info("image analyzed", "result_length", utf8.RuneCountInString(text))

	state = StateResponseReady
	return state, inv.responses.Success(text)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
