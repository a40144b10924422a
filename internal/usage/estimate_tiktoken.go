package usage

import (
	"github.com/Laisky/zap"
	"github.com/pkoukk/tiktoken-go"

	"github.com/laisky/relay-gateway/internal/logger"
)

// tikEncoder backs the pre-authoritative token estimate with a real BPE
// encoder rather than the byte-count heuristic, when available. It is
// still an estimate across the board: cl100k_base is OpenAI's own
// tokenizer, so an Anthropic or Gemini upstream's actual token count will
// differ, same caveat the teacher's own cross-model InitTokenEncoders
// fallback carries. Grounded on relay/adaptor/openai/token.go's
// package-level encoder cache built once at startup.
var tikEncoder *tiktoken.Tiktoken

func init() {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Logger.Warn("failed to load tiktoken encoder, falling back to byte-count token estimate", zap.Error(err))
		return
	}
	tikEncoder = enc
}

// estimateTokensBPE returns a tiktoken-backed estimate, or false if no
// encoder loaded successfully at startup.
func estimateTokensBPE(text string) (int, bool) {
	if tikEncoder == nil || text == "" {
		return 0, false
	}
	return len(tikEncoder.Encode(text, nil, nil)), true
}
