package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/soficola/bridge-relay/types"
)

const defaultTimeout = 10 * time.Second

// Pipeline formats bridge events into destination payloads and delivers them
// to the HTTP sink. One delivery attempt per call; the caller decides
// whether and how to retry.
type Pipeline struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

type PipelineOpts struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *slog.Logger
}

func NewPipeline(opts PipelineOpts) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	opts.Logger.Info("relay pipeline initialized", "endpoint", opts.Endpoint)

	return &Pipeline{
		endpoint: opts.Endpoint,
		client:   &http.Client{Timeout: opts.Timeout},
		logger:   opts.Logger,
	}
}

// FormatPayload transforms a decoded bridge event into the destination
// payload. The amount is rendered as a decimal string, never as a native
// number, so values above 2^53 survive the JSON boundary intact.
func FormatPayload(event types.BridgeEvent) types.RelayPayload {
	return types.RelayPayload{
		SourceTransactionHash: event.SourceTxHash.Hex(),
		SourceBlockNumber:     event.SourceBlockNumber,
		BridgeNonce:           event.Nonce.Uint64(),
		SourceSender:          event.Sender.Hex(),
		DestinationRecipient:  event.Recipient.Hex(),
		DestinationChainID:    event.DestinationChainID.Uint64(),
		TokenAddress:          event.Token.Hex(),
		Amount:                event.Amount.String(),
	}
}

// Relay delivers a single event to the sink and reports the outcome.
// Transport faults and non-2xx responses are failures; neither is retried
// here and neither blocks the caller's scan progress.
func (p *Pipeline) Relay(ctx context.Context, event types.BridgeEvent) types.RelayOutcome {
	payload := FormatPayload(event)

	body, err := json.Marshal(payload)
	if err != nil {
		return types.RelayOutcome{Delivered: false, Detail: fmt.Sprintf("failed to marshal payload: %s", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return types.RelayOutcome{Delivered: false, Detail: fmt.Sprintf("failed to create request: %s", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return types.RelayOutcome{Delivered: false, Detail: fmt.Sprintf("transport error: %s", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.RelayOutcome{Delivered: false, Detail: fmt.Sprintf("sink returned status %d", resp.StatusCode)}
	}

	// The sink acknowledges accepted payloads with an id.
	var ack struct {
		ID json.Number `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		p.logger.Warn("could not decode sink acknowledgment", "txHash", payload.SourceTransactionHash, "error", err)
		return types.RelayOutcome{Delivered: true}
	}

	return types.RelayOutcome{Delivered: true, Detail: ack.ID.String()}
}
