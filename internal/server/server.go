// Package server wires the gateway's gin engine: middleware chain and
// ingress route table (§6); graceful shutdown is done by cmd/gateway.
// Grounded on main.go's
// server construction in the teacher (gin.New, gmw's logger middleware,
// RequestId, panic recovery) narrowed to this gateway's route table.
package server

import (
	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/logger"
	"github.com/laisky/relay-gateway/internal/middleware"
	"github.com/laisky/relay-gateway/internal/ratelimit"
	"github.com/laisky/relay-gateway/internal/upstreamclient"
	"github.com/laisky/relay-gateway/internal/usage"
)

// New builds the gin engine and registers every route from §6's ingress
// table.
func New(store gwconfig.Store, gate *ratelimit.Gate, pool *upstreamclient.Pool, sink usage.Sink) *gin.Engine {
	logLevel := glog.LevelInfo
	if gwconfig.DebugEnabled {
		logLevel = glog.LevelDebug
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
		middleware.PanicGuard(),
		middleware.RequestID(),
	)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &Handlers{Store: store, Gate: gate, Pool: pool, Sink: sink}

	openaiForward := r.Group("/")
	openaiForward.Use(middleware.Auth(), middleware.Route(store, "openai"))
	{
		openaiForward.POST("/v1/chat/completions", h.ForwardOpenAI)
		openaiForward.POST("/v1/responses", h.ForwardOpenAI)
		openaiForward.POST("/openai/v1/chat/completions", h.ForwardOpenAI)
		openaiForward.POST("/openai/v1/responses", h.ForwardOpenAI)
	}

	anthropicForward := r.Group("/")
	anthropicForward.Use(middleware.Auth(), middleware.Route(store, "anthropic"))
	anthropicForward.POST("/anthropic/v1/messages", h.ForwardAnthropic)

	geminiForward := r.Group("/")
	geminiForward.Use(middleware.Auth(), middleware.Route(store, "gemini"))
	geminiForward.POST("/gemini/v1beta/models/:model", h.ForwardGemini)

	realtime := r.Group("/")
	realtime.Use(middleware.Auth())
	realtime.GET("/v1/realtime", h.ForwardRealtime)

	// gzip only covers the plain-JSON model listing: streaming/unary forward
	// responses are served through the same gin.Engine but compressing an
	// SSE stream would defeat the bridge's per-chunk flush.
	r.GET("/v1/models", gzip.Gzip(gzip.DefaultCompression), h.ListModels)

	return r
}
