package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Enhancer rewrites the narrative parts of a prediction. Implementations get
// the deterministic result and return an edited copy; the engine re-validates
// every numeric field before trusting it.
type Enhancer interface {
	Enhance(ctx context.Context, res Result) (Result, error)
}

// HTTPEnhancer posts the result to a narrative service and decodes the edited
// copy from the response body.
type HTTPEnhancer struct {
	url    string
	client *http.Client
}

// NewHTTPEnhancer builds an enhancer against url with a per-call timeout.
func NewHTTPEnhancer(url string, timeout time.Duration) *HTTPEnhancer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPEnhancer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPEnhancer) Enhance(ctx context.Context, res Result) (Result, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return Result{}, fmt.Errorf("encoding prediction: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("building enhancement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling enhancement service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("enhancement service returned %s", resp.Status)
	}
	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decoding enhanced prediction: %w", err)
	}
	return out, nil
}

// sanitizeEnhanced merges an enhanced result back over the local one. Prose
// is taken as-is; numbers are accepted only where they keep the local
// invariants, otherwise the local value stands.
func sanitizeEnhanced(local, enhanced Result, unit int64) Result {
	out := local

	if enhanced.Recommendation.Rationale != "" {
		out.Recommendation.Rationale = enhanced.Recommendation.Rationale
	}

	// Per-bidder probabilities may be re-weighted, but never past the cap
	// and never for bidders the local pass excluded.
	byID := make(map[string]float64, len(enhanced.LikelyBidders))
	for _, lb := range enhanced.LikelyBidders {
		byID[lb.BidderID] = lb.Probability
	}
	for i := range out.LikelyBidders {
		p, ok := byID[out.LikelyBidders[i].BidderID]
		if !ok || p < 0 {
			continue
		}
		if p > maxProbability {
			p = maxProbability
		}
		out.LikelyBidders[i].Probability = p
	}

	// A revised target is trusted only if it stays a whole increment inside
	// the valuation band.
	if s := enhanced.Recommendation.SuggestedBuyPrice; s > 0 &&
		s%unit == 0 &&
		s >= local.Valuation.MinPrice &&
		s <= local.Valuation.MaxPrice {
		out.Recommendation.SuggestedBuyPrice = s
	}

	// The action may soften but a mandatory pass is never overturned, and a
	// recommended bid amount always stays local.
	if local.Recommendation.Action != ActionPass {
		switch enhanced.Recommendation.Action {
		case ActionBid, ActionWait, ActionPass:
			out.Recommendation.Action = enhanced.Recommendation.Action
		}
		if out.Recommendation.Action != ActionBid {
			out.Recommendation.RecommendedBid = 0
		}
	}
	return out
}
