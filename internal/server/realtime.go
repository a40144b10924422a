package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
	"github.com/laisky/relay-gateway/internal/router"
)

// upgrader upgrades the caller's connection to a WebSocket session. Origin
// checking is left to the forward-token check in middleware.Auth, which
// already ran before this handler; CheckOrigin itself stays permissive,
// grounded on relay/adaptor/openai/realtime.go's RealtimeHandler.
var upgrader = websocket.Upgrader{
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// ForwardRealtime handles GET /v1/realtime: a bidirectional WebSocket
// passthrough to an upstream OpenAI-compatible Realtime endpoint. Only
// api_style "openai" upstreams support this mode; routing is resolved here
// directly from the "model" query parameter rather than through
// middleware.Route, since a WebSocket upgrade request carries no JSON body
// to sniff. Usage accounting for realtime sessions is best-effort only
// (spec.md's Non-goals exclude full realtime semantics), mirroring the
// teacher's "no quota consumption" framing for this mode.
func (h *Handlers) ForwardRealtime(c *gin.Context) {
	lg := gmw.GetLogger(c)

	requestedModel := c.Query("model")
	snapshot := h.Store.Current()

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
	candidate, ok := plan.Next(map[string]bool{})
	if !ok {
		gwerrors.New(gwerrors.KindUpstreamExhausted, "no eligible upstream for model: "+resolved.ID).WriteJSON(c)
		return
	}

	up := candidate.Upstream
	if len(up.Endpoints) == 0 {
		gwerrors.New(gwerrors.KindUpstreamNotFound, "upstream has no endpoint configured").WriteJSON(c)
		return
	}

	clientConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		gwerrors.New(gwerrors.KindInvalidRequest, "websocket upgrade failed: "+err.Error()).WriteJSON(c)
		return
	}
	defer func() { _ = clientConn.Close() }()

	upstreamURL := realtimeUpstreamURL(up.Endpoints[0], candidate.Route.UpstreamModelID, resolved.ID, c.Request.URL.RawQuery)

	requestHeader := http.Header{}
	if sp := c.GetHeader("Sec-WebSocket-Protocol"); sp != "" {
		requestHeader.Set("Sec-WebSocket-Protocol", sp)
	}
	if beta := c.GetHeader("OpenAI-Beta"); beta != "" {
		requestHeader.Set("OpenAI-Beta", beta)
	} else {
		requestHeader.Set("OpenAI-Beta", "realtime=v1")
	}
	requestHeader.Set("Authorization", "Bearer "+up.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	upstreamConn, _, dialErr := dialer.Dial(upstreamURL, requestHeader)
	if dialErr != nil {
		_ = clientConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "upstream connect failed"))
		lg.Warn("realtime upstream dial failed", zap.String("upstream", up.ID), zap.Error(dialErr))
		return
	}
	defer func() { _ = upstreamConn.Close() }()

	errc := make(chan error, 2)
	go func() { errc <- pumpWS(upstreamConn, clientConn) }()
	go func() { errc <- pumpWS(clientConn, upstreamConn) }()

	if e := <-errc; e != nil {
		lg.Debug("realtime session closed", zap.String("upstream", up.ID), zap.Error(e))
	}
}

// realtimeUpstreamURL rewrites the upstream's configured http(s) endpoint
// into its ws(s) Realtime path, overriding the model query parameter with
// the resolved upstream model id.
func realtimeUpstreamURL(endpoint, upstreamModel, fallbackModel, rawQuery string) string {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return endpoint
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = "/v1/realtime"

	q, _ := url.ParseQuery(rawQuery)
	model := upstreamModel
	if model == "" {
		model = fallbackModel
	}
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String()
}

// pumpWS copies frames from src to dst until either side closes, mirroring
// frame type. Grounded on relay/adaptor/openai/realtime.go's copyWS.
func pumpWS(src, dst *websocket.Conn) error {
	for {
		mt, msg, err := src.ReadMessage()
		if err != nil {
			return errors.WithStack(err)
		}
		if werr := dst.WriteMessage(mt, msg); werr != nil {
			return errors.WithStack(werr)
		}
	}
}
