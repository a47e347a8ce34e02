package credit

// Rule thresholds. Monetary values are pence.
const (
	overLimitBlockPct = 20.0

	proformaOnTimeFloor = 0.80

	platinumMonthlyBilledMin = 50_000_00
	platinumAnnualBilledMin  = 500_000_00
	platinumOnTimeFloor      = 0.95

	sapphireMonthlyBilledMin = 15_000_00
	sapphireOrdersPerYearMin = 12
	sapphireOnTimeFloor      = 0.90
)

// Classify assigns a snapshot to exactly one tier.
//
// Rules are evaluated in strict descending priority and the first match wins:
// Crimson, then Proforma, then Platinum, then Sapphire, then Steel as the
// unconditional default. The order is fixed here and is not derivable from
// the tiers' Level values.
func Classify(s Snapshot) TierAssignment {
	if crimsonMatch(s) {
		return TierAssignment{
			Tier:   TierCrimson,
			Level:  5,
			Reason: "Credit stop triggered - Risk assessment indicates payment risk",
			RequiredActions: []string{
				"Block all orders",
				"Alert Finance team",
				"Require manual approval",
				"Weekly monitoring",
			},
		}
	}

	if proformaMatch(s) {
		return TierAssignment{
			Tier:   TierProforma,
			Level:  4,
			Reason: "Payment verification required - Elevated payment risk detected",
			RequiredActions: []string{
				"Require payment on delivery",
				"Monitor closely",
				"Potential upgrade after 6 on-time payments",
				"Daily tracking",
			},
		}
	}

	if platinumMatch(s) {
		return TierAssignment{
			Tier:   TierPlatinum,
			Level:  1,
			Reason: "Premium customer - Excellent payment history and high volume",
			RequiredActions: []string{
				"Premium benefits",
				"Extended payment terms",
				"Priority support",
				"Quarterly business review",
			},
		}
	}

	if sapphireMatch(s) {
		return TierAssignment{
			Tier:   TierSapphire,
			Level:  2,
			Reason: "Preferred customer - Good payment history and regular business",
			RequiredActions: []string{
				"Standard benefits",
				"Good payment terms",
				"Monthly check-in",
				"Growth opportunities",
			},
		}
	}

	return TierAssignment{
		Tier:   TierSteel,
		Level:  3,
		Reason: "Standard tier - Normal credit profile, requires ongoing monitoring",
		RequiredActions: []string{
			"Standard terms",
			"Monthly review",
			"Credit check every 90 days",
			"Monitor for upgrade",
		},
	}
}

// crimsonMatch is the credit-stop rule. A zero credit limit makes the
// over-limit ratio undefined; any debt against it counts as over limit, and
// even a debt-free zero-limit account is blocked rather than skipping the rule.
func crimsonMatch(s Snapshot) bool {
	overLimit := s.CreditLimit <= 0 ||
		float64(s.CurrentDebt)/float64(s.CreditLimit)*100 > overLimitBlockPct
	return overLimit ||
		s.AgedReceivables60 > 0 ||
		s.RiskLevel == RiskLegal ||
		s.RiskLevel == RiskInsolvency
}

func proformaMatch(s Snapshot) bool {
	return s.PaymentTerms == TermsProforma ||
		s.OnTimePaymentRatio < proformaOnTimeFloor ||
		s.AgedReceivables45 > 0 ||
		s.RiskLevel == RiskHigh
}

func platinumMatch(s Snapshot) bool {
	volume := s.AvgMonthlyBilled6M >= platinumMonthlyBilledMin ||
		s.AnnualBilled >= platinumAnnualBilledMin
	return volume &&
		s.OnTimePaymentRatio >= platinumOnTimeFloor &&
		s.RiskLevel == RiskLow &&
		s.PaymentTerms != TermsProforma
}

func sapphireMatch(s Snapshot) bool {
	volume := s.AvgMonthlyBilled6M >= sapphireMonthlyBilledMin ||
		s.OrdersPerYear >= sapphireOrdersPerYearMin
	return volume &&
		s.OnTimePaymentRatio >= sapphireOnTimeFloor &&
		(s.RiskLevel == RiskLow || s.RiskLevel == RiskMedium) &&
		s.PaymentTerms != TermsProforma
}
