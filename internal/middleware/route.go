package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/laisky/relay-gateway/internal/ctxkey"
	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
	"github.com/laisky/relay-gateway/internal/relaycontext"
	"github.com/laisky/relay-gateway/internal/router"
)

// sniffPayload is the minimal shape every ingress wire format shares: a
// "model" field and, for Anthropic's streaming flag, "stream". Grounded on
// middleware/utils.go's ModelRequest/getRequestModel in the teacher.
type sniffPayload struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// Route implements §4.1 steps 2-6: extract the model id using the ingress
// style's wire-format-specific rule (OpenAI/Anthropic sniff the body's
// top-level "model" field; Gemini reads the URL path's trailing segment,
// per §4.1 step 2), expand "auto" to the highest-priority eligible model,
// resolve the model, build a router plan and pick the first candidate,
// detect streaming, and log one INFO line. Panic/auth/request-id must run
// before this in the chain.
func Route(store gwconfig.Store, ingressStyle string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := gmw.GetLogger(c)

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			gwerrors.New(gwerrors.KindInvalidRequest, "failed to read request body").WriteJSON(c)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		var payload sniffPayload
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			gwerrors.New(gwerrors.KindInvalidRequest, "request body is not valid JSON").WriteJSON(c)
			return
		}

		snapshot := store.Current()

		requestedModel, isStreamingPath := modelFromIngress(c, ingressStyle, payload)
		c.Set(ctxkey.RequestModel, requestedModel)

		var resolved gwconfig.Model
		var ok bool
		if requestedModel == "" || requestedModel == "auto" {
			resolved, ok = snapshot.ResolveAuto()
		} else {
			resolved, ok = snapshot.ResolveModel(requestedModel)
		}
		if !ok {
			gwerrors.New(gwerrors.KindModelNotFound, "no such model: "+requestedModel).WriteJSON(c)
			return
		}

		plan := router.BuildPlan(snapshot, resolved)
		if plan.Empty() {
			gwerrors.New(gwerrors.KindUpstreamNotFound, "model has no eligible routes: "+resolved.ID).WriteJSON(c)
			return
		}

		candidate, ok := plan.Next(map[string]bool{})
		if !ok {
			gwerrors.New(gwerrors.KindUpstreamExhausted, "no eligible upstream for model: "+resolved.ID).WriteJSON(c)
			return
		}

		fc := relaycontext.New(c, resolved, candidate.Route, candidate.Upstream, plan, isStreamingPath)

		lg.Info("routed request",
			zap.String("requested_model", requestedModel),
			zap.String("resolved_model", resolved.ID),
			zap.String("upstream", candidate.Upstream.ID),
			zap.Bool("streaming", isStreamingPath),
			zap.String("channel", fc.Channel),
			zap.String("tool", fc.Tool))

		c.Next()
	}
}

// modelFromIngress extracts the requested model id and the streaming flag
// using the wire-format-specific rule named by §4.1 step 2/6: OpenAI and
// Anthropic carry both in the JSON body (top-level "model", "stream");
// Gemini carries both in the URL, as the trailing ":method" segment of the
// wildcard route's :model param (e.g. "gemini-1.5-pro:streamGenerateContent"),
// per §6's "wildcard; the trailing segment identifies model and streaming".
func modelFromIngress(c *gin.Context, ingressStyle string, payload sniffPayload) (model string, streaming bool) {
	if ingressStyle != "gemini" {
		return payload.Model, payload.Stream || strings.Contains(c.Request.URL.Path, "stream")
	}

	raw := c.Param("model")
	model, method, _ := strings.Cut(raw, ":")
	return model, method == "streamGenerateContent"
}
