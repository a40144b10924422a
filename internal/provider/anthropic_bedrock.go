package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
)

// bedrockAnthropicVersion is the anthropic_version Bedrock's Claude models
// require in place of the direct API's header, per the teacher's
// relay/adaptor/aws/claude adapter.
const bedrockAnthropicVersion = "bedrock-2023-05-31"

// patchForBedrock rewrites a direct-API Claude Messages body into Bedrock's
// InvokeModel body shape: anthropic_version replaces the top-level model
// field (the model is addressed by the Bedrock model id in the API call
// itself, not the JSON body), grounded on
// relay/adaptor/aws/claude/adapter.go's ConvertRequest.
func patchForBedrock(body []byte) ([]byte, error) {
	var generic map[string]any
	if err := json.Unmarshal(body, &generic); err != nil {
		return nil, err
	}
	delete(generic, "model")
	generic["anthropic_version"] = bedrockAnthropicVersion
	return json.Marshal(generic)
}

func bedrockClient(ctx context.Context, up gwconfig.Upstream) (*bedrockruntime.Client, *gwerrors.Error) {
	region := up.BedrockRegion
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindUpstreamHTTPError, "failed to load aws config: "+err.Error())
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}

func (h AnthropicHandler) handleBedrockUnary(ctx context.Context, up gwconfig.Upstream, body []byte) ([]byte, *gwerrors.Error) {
	patched, err := patchForBedrock(body)
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindInvalidRequest, "failed to adapt request for bedrock")
	}
	client, gwErr := bedrockClient(ctx, up)
	if gwErr != nil {
		return nil, gwErr
	}
	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(up.BedrockModelID),
		ContentType: aws.String("application/json"),
		Body:        patched,
	})
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindUpstreamHTTPError, "bedrock invoke failed: "+err.Error())
	}
	return out.Body, nil
}

func (h AnthropicHandler) handleBedrockStream(ctx context.Context, up gwconfig.Upstream, body []byte, sink Sink) *gwerrors.Error {
	patched, err := patchForBedrock(body)
	if err != nil {
		return gwerrors.New(gwerrors.KindInvalidRequest, "failed to adapt request for bedrock")
	}
	client, gwErr := bedrockClient(ctx, up)
	if gwErr != nil {
		return gwErr
	}
	out, err := client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(up.BedrockModelID),
		ContentType: aws.String("application/json"),
		Body:        patched,
	})
	if err != nil {
		return gwerrors.New(gwerrors.KindUpstreamHTTPError, "bedrock invoke stream failed: "+err.Error())
	}
	defer out.GetStream().Close()

	for event := range out.GetStream().Events() {
		chunk, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok || chunk == nil {
			continue
		}
		eventType := sniffBedrockEventType(chunk.Value.Bytes)
		frame := bytes.Join([][]byte{
			[]byte("event: " + eventType),
			append([]byte("data: "), chunk.Value.Bytes...),
		}, []byte("\n"))
		if werr := sink.Write(StreamFrame{Raw: append(frame, []byte("\n\n")...)}); werr != nil {
			return gwerrors.New(gwerrors.KindInternalError, "failed writing to client")
		}
		if eventType == "message_stop" {
			break
		}
	}
	_ = sink.Write(StreamFrame{Done: true})
	if err := out.GetStream().Err(); err != nil {
		return gwerrors.New(gwerrors.KindUpstreamTimeout, "bedrock stream read failed: "+err.Error())
	}
	return nil
}

// sniffBedrockEventType extracts Claude's own "type" field from a Bedrock
// stream chunk: Bedrock doesn't frame chunks as "event:"/"data:" pairs like
// the direct Anthropic API does, so the gateway reconstructs the same
// SSE-shaped frame from the chunk's own type field to keep downstream
// decoding (decodeUpstreamFrame/parseAnthropicFrame) identical either way.
func sniffBedrockEventType(raw []byte) string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "message_delta"
	}
	return strings.TrimSpace(probe.Type)
}
