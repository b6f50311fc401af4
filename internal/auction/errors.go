package auction

import "errors"

// Typed rejections returned by bid submission and settlement. All of them are
// recoverable by the caller: retry with refreshed state or report to the user.
var (
	// ErrValidation marks structurally malformed input (unknown ids, non
	// positive amounts). No partial effect ever occurs.
	ErrValidation = errors.New("invalid bid request")

	// ErrAuctionNotLive is returned when the auction is not accepting bids.
	ErrAuctionNotLive = errors.New("auction is not live")

	// ErrPlayerNotAvailable is returned when no lot is open or the targeted
	// player already left the available state.
	ErrPlayerNotAvailable = errors.New("player is not available for bidding")

	// ErrAlreadyHighestBidder rejects self-outbidding.
	ErrAlreadyHighestBidder = errors.New("bidder already holds the highest bid")

	// ErrBelowMinimumIncrement rejects bids under currentBid + increment.
	ErrBelowMinimumIncrement = errors.New("bid is below the minimum increment")

	// ErrInsufficientFunds rejects bids above the bidder's remaining purse.
	ErrInsufficientFunds = errors.New("insufficient purse")

	// ErrRosterInfeasible rejects bids that would make completing the
	// mandatory roster arithmetically impossible at the per-player reserve.
	ErrRosterInfeasible = errors.New("bid would make mandatory roster infeasible")

	// ErrConcurrencyConflict is returned when a submission loses the race
	// for the per-auction commit gate. Callers should refresh and retry.
	ErrConcurrencyConflict = errors.New("lost bid serialization race, retry with refreshed state")

	// ErrNoBids is returned when settlement is requested for a lot nobody
	// bid on; the lot should be closed unsold instead.
	ErrNoBids = errors.New("no bids to settle")

	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidderNotFound  = errors.New("bidder not found")
	ErrPlayerNotFound  = errors.New("player not found")
)
