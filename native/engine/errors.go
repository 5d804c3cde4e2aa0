package engine

import "errors"

var (
	// ErrValidation covers zero or negative amounts, unregistered assets and
	// malformed construction input.
	ErrValidation = errors.New("engine: validation failed")
	// ErrInsufficientFunds is returned when a withdrawal or burn exceeds the
	// tracked balance.
	ErrInsufficientFunds = errors.New("engine: insufficient funds")
	// ErrExternalTransferFailed is returned when a collaborator transfer,
	// mint or burn call signals failure.
	ErrExternalTransferFailed = errors.New("engine: external transfer failed")
	// ErrSolvencyViolation is returned when an operation would leave a
	// position's health factor below the minimum.
	ErrSolvencyViolation = errors.New("engine: health factor below minimum")
	// ErrStaleOracleData is returned when a price feed reports data that is
	// too old or round-inconsistent to be trusted.
	ErrStaleOracleData = errors.New("engine: stale oracle data")
	// ErrLiquidationNotEligible is returned when the target of a liquidation
	// is still healthy.
	ErrLiquidationNotEligible = errors.New("engine: target position is healthy")
	// ErrLiquidationIneffective is returned when a liquidation did not
	// improve the target's health factor.
	ErrLiquidationIneffective = errors.New("engine: liquidation did not improve health factor")
	// ErrNilState is returned when the engine is used before its persistence
	// layer has been wired.
	ErrNilState = errors.New("engine: state not configured")
)
