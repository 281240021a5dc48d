package billing

import "time"

// rollSlack is how many steps past the estimated one roll-forward tries.
const rollSlack = 3

// PeriodEndStrategy derives the current period end of a subscription object
// from one place in the payload.
type PeriodEndStrategy struct {
	Name    string
	Resolve func(sub Object) (int64, bool)
}

// PeriodEndStrategies are tried in order; the first success wins.
var PeriodEndStrategies = []PeriodEndStrategy{
	{Name: "subscription", Resolve: periodEndFromSubscription},
	{Name: "items", Resolve: periodEndFromItems},
	{Name: "latest_invoice", Resolve: periodEndFromLatestInvoice},
}

// LastKnownPeriodEnd returns the period end carried by sub and the name of
// the strategy that found it.
func LastKnownPeriodEnd(sub Object) (int64, string, bool) {
	for _, s := range PeriodEndStrategies {
		if end, ok := s.Resolve(sub); ok {
			return end, s.Name, true
		}
	}
	return 0, "", false
}

// PeriodEnd returns the current period end of sub relative to ref. For a
// live (active or trialing) subscription whose last known end has lapsed, or
// is missing, the end is rolled forward by the billing interval until it is
// past ref. The rolled value is a prediction; the next provider event
// replaces it.
func PeriodEnd(sub Object, ref time.Time) (int64, bool) {
	end, _, found := LastKnownPeriodEnd(sub)
	if found && end > ref.Unix() {
		return end, true
	}
	if !isLive(GetString(sub, "status")) {
		return end, found
	}

	base := end
	if !found {
		anchor, ok := positiveInt64(sub, "billing_cycle_anchor")
		if !ok {
			return 0, false
		}
		base = anchor
	}
	interval, count, ok := BillingInterval(sub)
	if !ok {
		return end, found
	}
	rolled, ok := RollForward(time.Unix(base, 0).UTC(), interval, count, ref)
	if !ok {
		return end, found
	}
	return rolled.Unix(), true
}

// BillingInterval returns the recurring interval of the subscription's first
// priced item, falling back to the legacy plan object.
func BillingInterval(sub Object) (string, int64, bool) {
	for _, item := range GetList(sub, "items") {
		if recurring := GetObject(GetObject(item, "price"), "recurring"); recurring != nil {
			if interval, count, ok := intervalOf(recurring); ok {
				return interval, count, true
			}
		}
		if interval, count, ok := intervalOf(GetObject(item, "plan")); ok {
			return interval, count, true
		}
	}
	return intervalOf(GetObject(sub, "plan"))
}

func intervalOf(o Object) (string, int64, bool) {
	interval := GetString(o, "interval")
	if interval == "" {
		return "", 0, false
	}
	count, ok := GetInt64(o, "interval_count")
	if !ok || count <= 0 {
		count = 1
	}
	return interval, count, true
}

// RollForward advances end by count intervals until it is after ref.
// Month and year steps keep the anniversary day, clipped to the last day of
// shorter months.
func RollForward(end time.Time, interval string, count int64, ref time.Time) (time.Time, bool) {
	if count <= 0 {
		return time.Time{}, false
	}
	anchorDay := end.Day()

	var step func(n int64) time.Time
	var first int64
	switch interval {
	case "day", "week":
		days := count
		if interval == "week" {
			days *= 7
		}
		step = func(n int64) time.Time { return end.AddDate(0, 0, int(n*days)) }
		first = int64(ref.Sub(end)/(24*time.Hour)) / days
	case "month", "year":
		months := count
		if interval == "year" {
			months *= 12
		}
		step = func(n int64) time.Time { return addMonthsKeepDay(end, int(n*months), anchorDay) }
		first = monthsBetween(end, ref) / months
	default:
		return time.Time{}, false
	}

	// the first step after ref is the estimate or the one following it
	first--
	if first < 1 {
		first = 1
	}
	for n := first; n <= first+rollSlack; n++ {
		if next := step(n); next.After(ref) {
			return next, true
		}
	}
	return time.Time{}, false
}

func monthsBetween(from, to time.Time) int64 {
	fy, fm, _ := from.Date()
	ty, tm, _ := to.In(from.Location()).Date()
	return int64(ty-fy)*12 + int64(tm-fm)
}

// addMonthsKeepDay adds months while preserving day when the target month has
// it, otherwise using that month's last day.
func addMonthsKeepDay(base time.Time, months, day int) time.Time {
	year, month, _ := base.Date()
	first := time.Date(year, month+time.Month(months), 1, base.Hour(), base.Minute(), base.Second(), 0, base.Location())

	// day 0 of the following month is the last day of this one
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, first.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, base.Hour(), base.Minute(), base.Second(), 0, base.Location())
}

func periodEndFromSubscription(sub Object) (int64, bool) {
	return positiveInt64(sub, "current_period_end")
}

func periodEndFromItems(sub Object) (int64, bool) {
	var best int64
	for _, item := range GetList(sub, "items") {
		if end, ok := positiveInt64(item, "current_period_end"); ok && end > best {
			best = end
		}
	}
	return best, best > 0
}

func periodEndFromLatestInvoice(sub Object) (int64, bool) {
	invoice := GetObject(sub, "latest_invoice")
	if invoice == nil {
		return 0, false
	}
	var best int64
	for _, line := range GetList(invoice, "lines") {
		if end, ok := positiveInt64(GetObject(line, "period"), "end"); ok && end > best {
			best = end
		}
	}
	return best, best > 0
}

func positiveInt64(o Object, key string) (int64, bool) {
	v, ok := GetInt64(o, key)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

func isLive(providerStatus string) bool {
	s := upper(providerStatus)
	return s == ProviderStatusActive || s == ProviderStatusTrialing
}
