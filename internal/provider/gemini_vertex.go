package provider

import (
	"context"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/transport"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
)

// vertexScope is the OAuth2 scope Vertex AI's generateContent endpoints
// require for service-account auth.
const vertexScope = "https://www.googleapis.com/auth/cloud-platform"

// vertexRequestURL builds the Vertex AI publisher-model URL shape, which
// differs from the public Gemini API's /v1beta/models path: it is
// project/location-scoped, grounded on the teacher's relay/adaptor/
// vertexai package naming its endpoints by project+location+publisher.
func vertexRequestURL(up gwconfig.Upstream, route gwconfig.Route, streaming bool) string {
	model := route.UpstreamModelID
	method := "generateContent"
	if streaming {
		method = "streamGenerateContent"
	}
	return "https://" + up.VertexLocation + "-aiplatform.googleapis.com/v1/projects/" +
		up.VertexProject + "/locations/" + up.VertexLocation +
		"/publishers/google/models/" + model + ":" + method
}

// vertexBearerToken fetches a short-lived OAuth2 access token from the
// ambient Google credentials (service account key file, workload identity,
// or metadata server), via google.golang.org/api's own credential-loading
// helper rather than hand-rolling a JWT exchange.
func vertexBearerToken(ctx context.Context) (string, *gwerrors.Error) {
	creds, err := transport.Creds(ctx, option.WithScopes(vertexScope))
	if err != nil {
		return "", gwerrors.New(gwerrors.KindUpstreamHTTPError, "failed to load vertex credentials: "+err.Error())
	}
	tok, err := creds.TokenSource.Token()
	if err != nil {
		return "", gwerrors.New(gwerrors.KindUpstreamHTTPError, "failed to mint vertex access token: "+err.Error())
	}
	return tok.AccessToken, nil
}

func isVertex(up gwconfig.Upstream) bool {
	return strings.EqualFold(up.AuthVariant, "vertex")
}
