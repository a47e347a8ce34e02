// Package credit implements the deterministic credit-tier classifier.
//
// A Snapshot is an ephemeral view of a customer's credit position produced by
// an external check (Experian feed plus our own ledger aggregates). Snapshots
// are immutable: a new check supersedes the old one, nothing mutates in place.
package credit

import "time"

// SnapshotValidity is how long a credit check remains authoritative.
// Past this window the assignment must be recomputed from a fresh snapshot.
const SnapshotValidity = 90 * 24 * time.Hour

// RiskLevel is the external agency's risk classification.
type RiskLevel string

const (
	RiskLow        RiskLevel = "LOW"
	RiskMedium     RiskLevel = "MEDIUM"
	RiskHigh       RiskLevel = "HIGH"
	RiskLegal      RiskLevel = "LEGAL"
	RiskInsolvency RiskLevel = "INSOLVENCY"
)

// Valid reports whether the risk level is one of the known values.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskLegal, RiskInsolvency:
		return true
	}
	return false
}

// PaymentTerms is the customer's current contractual payment arrangement.
type PaymentTerms string

const (
	TermsNet      PaymentTerms = "NET_TERMS"
	TermsProforma PaymentTerms = "PROFORMA"
	TermsCOD      PaymentTerms = "CASH_ON_DELIVERY"
)

// Valid reports whether the payment terms value is known.
func (p PaymentTerms) Valid() bool {
	switch p {
	case TermsNet, TermsProforma, TermsCOD:
		return true
	}
	return false
}

// Snapshot is one customer credit check result. Monetary amounts are pence.
type Snapshot struct {
	CreditLimit        int64        `json:"credit_limit"`
	CurrentDebt        int64        `json:"current_debt"`
	AgedReceivables45  int          `json:"aged_receivables_45"`
	AgedReceivables60  int          `json:"aged_receivables_60"`
	RiskLevel          RiskLevel    `json:"risk_level"`
	PaymentTerms       PaymentTerms `json:"payment_terms"`
	OnTimePaymentRatio float64      `json:"on_time_payment_ratio"`
	AvgMonthlyBilled6M int64        `json:"avg_monthly_billed_6m"`
	AnnualBilled       int64        `json:"annual_billed"`
	OrdersPerYear      int          `json:"orders_per_year"`
}

// Tier is a named risk/trust classification.
type Tier string

const (
	TierCrimson  Tier = "CRIMSON"
	TierProforma Tier = "PROFORMA"
	TierPlatinum Tier = "PLATINUM"
	TierSapphire Tier = "SAPPHIRE"
	TierSteel    Tier = "STEEL"
)

// DisplayName is the customer-facing tier label.
func (t Tier) DisplayName() string {
	switch t {
	case TierCrimson:
		return "Crimson"
	case TierProforma:
		return "Green (Proforma)"
	case TierPlatinum:
		return "Platinum (Premier)"
	case TierSapphire:
		return "Sapphire (Preferred)"
	default:
		return "Steel (Standard)"
	}
}

// TierAssignment is the outcome of classifying one snapshot.
//
// Level is display metadata carried over from the tier ladder (1 best, 5
// blocked). It does NOT encode evaluation precedence: Crimson (level 5) and
// Proforma (level 4) are checked before Platinum (level 1).
type TierAssignment struct {
	Tier            Tier     `json:"tier"`
	Level           int      `json:"level"`
	Reason          string   `json:"reason"`
	RequiredActions []string `json:"required_actions"`
}
