package pool

import "errors"

var (
	// ErrInvalidInput rejects malformed amounts or parameters before any
	// math runs.
	ErrInvalidInput = errors.New("pool: invalid input")

	// ErrInvalidAsset rejects assets that are not one of the pool's pair.
	ErrInvalidAsset = errors.New("pool: asset not in pair")

	// ErrInsufficientOutput is returned when the computed swap output falls
	// below the caller's minimum. The caller may resubmit with a looser
	// bound; state is untouched.
	ErrInsufficientOutput = errors.New("pool: output below minimum")

	// ErrSlippageExceeded is returned when a liquidity operation breaches
	// the caller's share or amount bound.
	ErrSlippageExceeded = errors.New("pool: slippage bound exceeded")

	// ErrInsufficientLiquidity is returned when the pool has no shares to
	// support the requested operation, or an initial deposit is below the
	// minimum-liquidity floor.
	ErrInsufficientLiquidity = errors.New("pool: insufficient liquidity")

	// ErrInvariantLoss guards against value leaking out of the pool: any
	// computation that would decrease invariant-per-share aborts the call.
	ErrInvariantLoss = errors.New("pool: invariant per share decreased")

	// ErrNotFound is returned by stores when the pool id has no saved state.
	ErrNotFound = errors.New("pool: state not found")

	// ErrTransferFailed wraps a token-transfer service failure; no state is
	// committed when it occurs.
	ErrTransferFailed = errors.New("pool: token transfer failed")
)
