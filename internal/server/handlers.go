package server

import (
	"io"
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	gutils "github.com/Laisky/go-utils/v5"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
	"github.com/laisky/relay-gateway/internal/provider"
	"github.com/laisky/relay-gateway/internal/ratelimit"
	"github.com/laisky/relay-gateway/internal/relaycontext"
	"github.com/laisky/relay-gateway/internal/router"
	"github.com/laisky/relay-gateway/internal/translate"
	"github.com/laisky/relay-gateway/internal/upstreamclient"
	"github.com/laisky/relay-gateway/internal/usage"
)

// Handlers groups the shared collaborators every ingress route's forwarding
// handler needs: the config snapshot store (for model/upstream lookups
// already resolved by middleware.Route), the rate/budget gate, the shared
// HTTP client pool, and the usage sink.
type Handlers struct {
	Store gwconfig.Store
	Gate  *ratelimit.Gate
	Pool  *upstreamclient.Pool
	Sink  usage.Sink
}

// ForwardOpenAI handles /v1/chat/completions, /v1/responses, and their
// /openai/v1/* aliases.
func (h *Handlers) ForwardOpenAI(c *gin.Context) { h.forward(c, "openai") }

// ForwardAnthropic handles /anthropic/v1/messages.
func (h *Handlers) ForwardAnthropic(c *gin.Context) { h.forward(c, "anthropic") }

// ForwardGemini handles /gemini/v1beta/models/:model(:method).
func (h *Handlers) ForwardGemini(c *gin.Context) { h.forward(c, "gemini") }

// forward implements the end-to-end request lifecycle: admission, request
// translation, the router/fallback retry loop (§4.2), response translation,
// and usage accounting (§4.1-§4.6).
func (h *Handlers) forward(c *gin.Context, ingressStyle string) {
	lg := gmw.GetLogger(c)

	fc, ok := relaycontext.FromGinContext(c)
	if !ok {
		gwerrors.New(gwerrors.KindInternalError, "request was not routed").WriteJSON(c)
		return
	}

	admission, gwErr := h.Gate.Admit(fc.SessionID)
	if gwErr != nil {
		gwErr.WriteJSON(c)
		return
	}
	defer admission.Release()

	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		gwerrors.New(gwerrors.KindInvalidRequest, "failed to read request body").WriteJSON(c)
		return
	}

	chatReq, err := translate.RequestToOpenAI(ingressStyle, bodyBytes)
	if err != nil {
		gwerrors.New(gwerrors.KindInvalidRequest, "malformed request body").WriteJSON(c)
		return
	}

	var lastErr *gwerrors.Error
	for {
		upstreamModel := fc.Route.UpstreamModelID
		if upstreamModel == "" {
			upstreamModel = fc.Model.ID
			fc.Route.UpstreamModelID = upstreamModel
		}
		// Deep-clone per attempt: chatReq.Messages is shared across retries
		// and must not alias reqForUpstream's slice, since each attempt only
		// mutates the top-level Model field but a shallow struct copy would
		// still share the underlying Messages backing array.
		var reqForUpstream translate.ChatRequest
		if err := copier.CopyWithOption(&reqForUpstream, &chatReq, copier.Option{DeepCopy: true}); err != nil {
			gwerrors.New(gwerrors.KindInternalError, "failed to clone request for upstream").WriteJSON(c)
			return
		}
		reqForUpstream.Model = upstreamModel

		upstreamBody, err := translate.RequestFromOpenAI(string(fc.Upstream.APIStyle), reqForUpstream)
		if err != nil {
			gwerrors.New(gwerrors.KindInvalidRequest, "failed to translate request for upstream").WriteJSON(c)
			return
		}

		fc.Tracker.SetPromptTokens(usage.EstimateTokens(translate.RequestText(reqForUpstream)))

		handler := provider.ForStyle(fc.Upstream.APIStyle)

		if fc.IsStreaming {
			lastErr = h.forwardStream(c, fc, handler, upstreamBody, ingressStyle)
		} else {
			lastErr = h.forwardUnary(c, fc, handler, upstreamBody, ingressStyle)
		}

		if lastErr == nil {
			return
		}

		lg.Warn("forward attempt failed",
			zap.String("upstream", fc.Upstream.ID),
			zap.String("kind", string(lastErr.Kind)),
			zap.Bool("retryable", lastErr.Retryable))

		if !gwconfig.EnableRetryFallback || !lastErr.Retryable || !fc.Advance() {
			final := router.Exhausted(lastErr)
			if !c.Writer.Written() {
				final.WriteJSON(c)
			}
			rec := fc.Tracker.Drain(true)
			h.Sink.RecordUsage(rec)
			return
		}
	}
}

func (h *Handlers) forwardUnary(c *gin.Context, fc *relaycontext.Context, handler provider.Handler, upstreamBody []byte, ingressStyle string) *gwerrors.Error {
	respBody, gwErr := handler.HandleUnary(c.Request.Context(), h.Pool, fc.Upstream, fc.Route, upstreamBody)
	if gwErr != nil {
		return gwErr
	}

	chatResp, err := translate.ResponseToOpenAI(string(fc.Upstream.APIStyle), respBody, fc.Model.ID)
	if err != nil {
		return gwerrors.New(gwerrors.KindUpstreamHTTPError, "failed to parse upstream response")
	}

	if prompt, completion, ok := translate.ExtractUsage(chatResp.Usage); ok {
		fc.Tracker.ApplyAuthoritative(prompt, completion)
	}

	prompt, completion := fc.Tracker.Snapshot()
	cost := usage.ComputeCostUSD(fc.Model, prompt, completion)
	h.Gate.RecordSpend(cost)

	outBytes, err := translate.ResponseFromOpenAI(ingressStyle, chatResp)
	if err != nil {
		return gwerrors.New(gwerrors.KindInternalError, "failed to translate response for caller")
	}

	rec := fc.Tracker.Drain(false)
	rec.CostUSD = cost
	h.Sink.RecordUsage(rec)

	c.Data(http.StatusOK, "application/json", outBytes)
	return nil
}

func (h *Handlers) forwardStream(c *gin.Context, fc *relaycontext.Context, handler provider.Handler, upstreamBody []byte, ingressStyle string) *gwerrors.Error {
	bridge := newStreamBridge(c, ingressStyle, string(fc.Upstream.APIStyle), gutils.UUID7(), fc.Model.ID)

	gwErr := handler.HandleStream(c.Request.Context(), h.Pool, fc.Upstream, fc.Route, upstreamBody, bridge)

	prompt, completion := bridge.encodeState.PromptTokens, bridge.encodeState.CompletionTokens
	if prompt > 0 || completion > 0 {
		fc.Tracker.ApplyAuthoritative(prompt, completion)
	}
	promptSnap, completionSnap := fc.Tracker.Snapshot()
	cost := usage.ComputeCostUSD(fc.Model, promptSnap, completionSnap)
	h.Gate.RecordSpend(cost)

	// A failed attempt is not recorded here: forward's exit path writes the
	// request's single cancelled usage record.
	if gwErr != nil {
		return gwErr
	}

	rec := fc.Tracker.Drain(false)
	rec.CostUSD = cost
	h.Sink.RecordUsage(rec)

	return nil
}

// ListModels serves GET /v1/models: one entry per model id in the current
// snapshot (the non-temporary definition where an id has both), in OpenAI's
// {"object":"list","data":[...]} shape. Models are not filtered by upstream
// eligibility.
func (h *Handlers) ListModels(c *gin.Context) {
	snapshot := h.Store.Current()
	models := snapshot.ListModels()

	data := make([]gin.H, 0, len(models))
	for _, m := range models {
		data = append(data, gin.H{
			"id":       m.ID,
			"object":   "model",
			"owned_by": "relay-gateway",
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}
