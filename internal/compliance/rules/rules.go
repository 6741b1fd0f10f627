// Package rules evaluates compliance rules for proposed balance mutations.
//
// This is pure domain logic - no I/O, no side effects. Every function receives
// the facts it needs as arguments and returns a models.Result. Rules run in a
// fixed order and the first failing rule decides the code.
package rules

import (
	"secutoken/internal/compliance/models"
)

// Strategy is one compliance service flavour.
type Strategy interface {
	CheckTransfer(in TransferInput) models.Result
	CheckIssuance(in IssuanceInput) models.Result
}

// For returns the strategy for a service kind. Unknown kinds get the
// regulated rule set.
func For(kind models.ServiceKind) Strategy {
	switch kind {
	case models.ServiceNotRegulated:
		return NotRegulated{}
	case models.ServiceWhitelisted:
		return Whitelisted{}
	default:
		return Regulated{}
	}
}

// CheckBurn applies the only rule that gates burning and seizure.
func CheckBurn(from Party, amount uint64) models.Result {
	if amount > from.Balance {
		return models.Reject(models.CodeNotEnoughTokens)
	}
	return models.Valid
}

// NotRegulated only enforces pause, balance and locks.
type NotRegulated struct{}

func (NotRegulated) CheckTransfer(in TransferInput) models.Result {
	if r := checkBasics(in); !r.OK() {
		return r
	}
	if in.Amount > in.From.Transferable {
		return models.Reject(models.CodeTokensLocked)
	}
	return models.Valid
}

func (NotRegulated) CheckIssuance(IssuanceInput) models.Result {
	return models.Valid
}

// Whitelisted additionally requires registry membership and honours the
// liquidate-only flag.
type Whitelisted struct{}

func (Whitelisted) CheckTransfer(in TransferInput) models.Result {
	return checkCommon(in)
}

func (Whitelisted) CheckIssuance(in IssuanceInput) models.Result {
	if in.To.Special.IsSpecial() {
		return models.Valid
	}
	if !in.To.Registered() {
		return models.Reject(models.CodeWalletNotInRegistry)
	}
	if in.To.Flags.LiquidateOnly {
		return models.Reject(models.CodeInvestorLiquidateOnly)
	}
	return models.Valid
}

// Regulated runs the full rule chain.
type Regulated struct{}

// CheckTransfer rule order (fail-fast):
//  1. Paused (10)
//  2. Sender balance (15)
//  3. Receiver registered or special (20)
//  4. Sender transferable after locks (16)
//  5. Receiver liquidate-only (90)
//  6. Receiver region forbidden (26)
//  7. Issuance lock-up (32)
//  8. Force full transfer (50)
//  9. Flowback into US (25)
//  10. Force accredited (61/62)
//  11. Category caps (40)
//  12. Minimum (51) and maximum (52) holdings
//
// Intra-investor movement stops after rule 5.
func (Regulated) CheckTransfer(in TransferInput) models.Result {
	if r := checkCommon(in); !r.OK() {
		return r
	}
	if in.SameInvestor() {
		return models.Valid
	}

	from, to, cfg := in.From, in.To, in.Config

	// Rule 6: destination restricted
	if to.Regular() && to.Class.Region == models.RegionForbidden {
		return models.Reject(models.CodeDestinationRestricted)
	}

	// Rule 7: issuance lock-up
	if from.Regular() {
		lockedUp := LockedUp(from.Issuances, cfg.LockPeriodFor(from.Class.Region), in.Now)
		if in.Amount > saturatingSub(from.Aggregate, lockedUp) {
			return models.Reject(models.CodeHoldUp)
		}
	}

	// Rule 8: full transfer only
	if from.Regular() && in.Amount < from.Aggregate {
		if cfg.WorldWideForceFullTransfer || (cfg.ForceFullTransfer && from.Class.Region == models.RegionUS) {
			return models.Reject(models.CodeOnlyFullTransfer)
		}
	}

	// Rule 9: flowback
	if from.Regular() && to.Regular() &&
		from.Class.Region != models.RegionUS && to.Class.Region == models.RegionUS &&
		in.Now.Before(cfg.BlockFlowbackEndTime) {
		return models.Reject(models.CodeFlowback)
	}

	if to.Regular() {
		// Rule 10: accreditation
		if r := checkAccreditation(to, cfg); !r.OK() {
			return r
		}
	}

	// Rule 11: category caps
	if _, over := in.Counters.Exceeds(cfg.Limits, TransferDeltas(in)); over {
		return models.Reject(models.CodeMaxInvestorsInCategory)
	}

	// Rule 12: holdings bounds
	if to.Regular() {
		if r := checkReceiverHoldings(to, in.Amount, cfg); !r.OK() {
			return r
		}
	}
	if from.Regular() {
		remaining := saturatingSub(from.Aggregate, in.Amount)
		if floor := cfg.MinimumFor(from.Class.Region); remaining > 0 && floor > 0 && remaining < floor {
			return models.Reject(models.CodeAmountUnderMin)
		}
	}

	return models.Valid
}

// CheckIssuance applies the subset of the chain meaningful for minting.
func (Regulated) CheckIssuance(in IssuanceInput) models.Result {
	to, cfg := in.To, in.Config
	if to.Special.IsSpecial() {
		return models.Valid
	}
	if !to.Registered() {
		return models.Reject(models.CodeWalletNotInRegistry)
	}
	if to.Flags.LiquidateOnly {
		return models.Reject(models.CodeInvestorLiquidateOnly)
	}
	if to.Class.Region == models.RegionForbidden {
		return models.Reject(models.CodeDestinationRestricted)
	}
	if r := checkAccreditation(to, cfg); !r.OK() {
		return r
	}
	if _, over := in.Counters.Exceeds(cfg.Limits, IssuanceDeltas(in)); over {
		return models.Reject(models.CodeMaxInvestorsInCategory)
	}
	return checkReceiverHoldings(to, in.Amount, cfg)
}

// checkBasics covers rules 1 and 2.
func checkBasics(in TransferInput) models.Result {
	if in.Paused {
		return models.Reject(models.CodeTokenPaused)
	}
	if in.Amount > in.From.Balance {
		return models.Reject(models.CodeNotEnoughTokens)
	}
	return models.Valid
}

// checkCommon covers rules 1 to 5.
func checkCommon(in TransferInput) models.Result {
	if r := checkBasics(in); !r.OK() {
		return r
	}
	if !in.To.Registered() && !in.To.Special.IsSpecial() {
		return models.Reject(models.CodeWalletNotInRegistry)
	}
	if in.Amount > in.From.Transferable {
		return models.Reject(models.CodeTokensLocked)
	}
	if !in.SameInvestor() && in.To.Regular() && in.To.Flags.LiquidateOnly {
		return models.Reject(models.CodeInvestorLiquidateOnly)
	}
	return models.Valid
}

func checkAccreditation(to Party, cfg models.Config) models.Result {
	if cfg.ForceAccredited && !to.AccreditedNow {
		return models.Reject(models.CodeOnlyAccredited)
	}
	if cfg.ForceAccreditedUS && to.Class.Region == models.RegionUS && !to.AccreditedNow {
		return models.Reject(models.CodeOnlyUSAccredited)
	}
	return models.Valid
}

func checkReceiverHoldings(to Party, amount uint64, cfg models.Config) models.Result {
	after := to.Aggregate + amount
	if floor := cfg.MinimumFor(to.Class.Region); floor > 0 && after < floor {
		return models.Reject(models.CodeAmountUnderMin)
	}
	if cfg.MaximumHoldingsPerInvestor > 0 && after > cfg.MaximumHoldingsPerInvestor {
		return models.Reject(models.CodeAmountAboveMax)
	}
	return models.Valid
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
