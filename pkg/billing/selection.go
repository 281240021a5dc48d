package billing

// subscriptionRank orders provider statuses when an account has several
// subscriptions. Lower wins; unlisted statuses rank last.
var subscriptionRank = map[string]int{
	ProviderStatusActive:   0,
	ProviderStatusTrialing: 1,
	ProviderStatusPastDue:  2,
	ProviderStatusUnpaid:   3,
}

// SelectSubscription picks the subscription that best represents an account:
// active > trialing > past_due > unpaid > others, ties broken by the latest
// current period end. Returns nil for an empty list.
func SelectSubscription(subs []Object) Object {
	var (
		best     Object
		bestRank int
		bestEnd  int64
	)
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		rank := rankOf(GetString(sub, "status"))
		end, _, _ := LastKnownPeriodEnd(sub)
		if best == nil || rank < bestRank || (rank == bestRank && end > bestEnd) {
			best, bestRank, bestEnd = sub, rank, end
		}
	}
	return best
}

func rankOf(providerStatus string) int {
	if r, ok := subscriptionRank[upper(providerStatus)]; ok {
		return r
	}
	return len(subscriptionRank)
}
