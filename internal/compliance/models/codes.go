package models

import "fmt"

// Code is a compliance decision code. Lower non-zero codes are evaluated first;
// 0 means no objection was found.
type Code int

const (
	CodeValid                  Code = 0
	CodeTokenPaused            Code = 10
	CodeNotEnoughTokens        Code = 15
	CodeTokensLocked           Code = 16
	CodeWalletNotInRegistry    Code = 20
	CodeFlowback               Code = 25
	CodeDestinationRestricted  Code = 26
	CodeHoldUp                 Code = 32
	CodeMaxInvestorsInCategory Code = 40
	CodeOnlyFullTransfer       Code = 50
	CodeAmountUnderMin         Code = 51
	CodeAmountAboveMax         Code = 52
	CodeOnlyAccredited         Code = 61
	CodeOnlyUSAccredited       Code = 62
	CodeInvestorLiquidateOnly  Code = 90
	CodeLookupFailed           Code = 99
)

var reasons = map[Code]string{
	CodeValid:                  "Valid",
	CodeTokenPaused:            "Token paused",
	CodeNotEnoughTokens:        "Not enough tokens",
	CodeTokensLocked:           "Tokens locked",
	CodeWalletNotInRegistry:    "Wallet not in registry service",
	CodeFlowback:               "Flowback",
	CodeDestinationRestricted:  "Destination restricted",
	CodeHoldUp:                 "Under lock-up",
	CodeMaxInvestorsInCategory: "Max investors in category",
	CodeOnlyFullTransfer:       "Only full transfer",
	CodeAmountUnderMin:         "Amount of tokens under min",
	CodeAmountAboveMax:         "Amount of tokens above max",
	CodeOnlyAccredited:         "Only accredited",
	CodeOnlyUSAccredited:       "Only us accredited",
	CodeInvestorLiquidateOnly:  "Investor liquidate only",
	CodeLookupFailed:           "Compliance lookup failed",
}

// Reason returns the short reason string for the code.
func (c Code) Reason() string {
	if r, ok := reasons[c]; ok {
		return r
	}
	return fmt.Sprintf("Unknown code %d", int(c))
}

// Result is the advisory outcome of a compliance check.
type Result struct {
	Code   Code   `json:"code"`
	Reason string `json:"reason"`
}

// Valid is the no-objection result.
var Valid = Result{Code: CodeValid, Reason: CodeValid.Reason()}

// Reject builds a result for a violated rule.
func Reject(code Code) Result {
	return Result{Code: code, Reason: code.Reason()}
}

// OK reports whether the result carries no objection.
func (r Result) OK() bool {
	return r.Code == CodeValid
}

// Err converts a rejecting result into a *Violation; nil when the result is valid.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Violation{Code: r.Code, Reason: r.Reason}
}

// Violation is the enforcing-tier form of a rejected result.
type Violation struct {
	Code   Code
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("compliance violation %d: %s", int(v.Code), v.Reason)
}

// ComplianceCode exposes the numeric code to transports.
func (v *Violation) ComplianceCode() int { return int(v.Code) }

// ComplianceReason exposes the reason string to transports.
func (v *Violation) ComplianceReason() string { return v.Reason }
