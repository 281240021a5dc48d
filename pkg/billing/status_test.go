package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithin(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	end := now.Unix()

	tests := []struct {
		name string
		now  time.Time
		end  *int64
		want bool
	}{
		{"nil end", now, nil, false},
		{"zero end", now, Int64(0), false},
		{"negative end", now, Int64(-5), false},
		{"boundary is inclusive", now, Int64(end), true},
		{"one second after end", now.Add(time.Second), Int64(end), false},
		{"before end", now.Add(-time.Hour), Int64(end), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Within(tt.now, tt.end))
		})
	}
}

func TestResolve(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := now.Unix()
	day := int64(86400)

	tests := []struct {
		name      string
		rec       *Record
		want      Status
		wantUntil *int64
	}{
		{
			name: "nil record is none",
			rec:  nil,
			want: StatusNone,
		},
		{
			name: "empty record is none",
			rec:  &Record{},
			want: StatusNone,
		},
		{
			name:      "trial window open",
			rec:       &Record{TrialEnd: Int64(ts + day)},
			want:      StatusTrial,
			wantUntil: Int64(ts + day),
		},
		{
			name: "cancellation beats trial",
			rec:  &Record{StripeStatus: "CANCELED", TrialEnd: Int64(ts + day)},
			want: StatusCanceled,
		},
		{
			name: "active survives lapsed period",
			rec:  &Record{StripeStatus: "ACTIVE", CurrentPeriodEnd: Int64(ts - 100)},
			want: StatusActive,
		},
		{
			name: "exempt beats everything",
			rec:  &Record{Exempt: true, Canceled: true, StripeStatus: "CANCELED"},
			want: StatusExempt,
		},
		{
			name:      "active with open period",
			rec:       &Record{StripeStatus: "ACTIVE", CurrentPeriodEnd: Int64(ts + day)},
			want:      StatusActive,
			wantUntil: Int64(ts + day),
		},
		{
			name: "active without period end",
			rec:  &Record{StripeStatus: "ACTIVE"},
			want: StatusActive,
		},
		{
			name:      "trialing with open period is active",
			rec:       &Record{StripeStatus: "TRIALING", CurrentPeriodEnd: Int64(ts + day)},
			want:      StatusActive,
			wantUntil: Int64(ts + day),
		},
		{
			name: "scheduled cancellation uses cancel_at",
			rec: &Record{
				StripeStatus:      "ACTIVE",
				CurrentPeriodEnd:  Int64(ts - 10),
				CancelAtPeriodEnd: true,
				CancelAt:          Int64(ts + day),
			},
			want:      StatusActive,
			wantUntil: Int64(ts + day),
		},
		{
			name: "scheduled cancellation is not hard cancellation",
			rec: &Record{
				StripeStatus:      "ACTIVE",
				Canceled:          true,
				CancelAtPeriodEnd: true,
				CurrentPeriodEnd:  Int64(ts + day),
			},
			want:      StatusActive,
			wantUntil: Int64(ts + day),
		},
		{
			name: "hard cancellation flag",
			rec:  &Record{StripeStatus: "ACTIVE", Canceled: true, CurrentPeriodEnd: Int64(ts + day)},
			want: StatusCanceled,
		},
		{
			name:      "grace window open",
			rec:       &Record{StripeStatus: "PAST_DUE", GraceUntil: Int64(ts + day)},
			want:      StatusGrace,
			wantUntil: Int64(ts + day),
		},
		{
			name:      "past due prefers period end",
			rec:       &Record{StripeStatus: "PAST_DUE", CurrentPeriodEnd: Int64(ts - day), GraceUntil: Int64(ts - 1)},
			want:      StatusPastDue,
			wantUntil: Int64(ts - day),
		},
		{
			name:      "unpaid falls back to grace end",
			rec:       &Record{StripeStatus: "unpaid", GraceUntil: Int64(ts - 1)},
			want:      StatusPastDue,
			wantUntil: Int64(ts - 1),
		},
		{
			name: "past due without dates",
			rec:  &Record{StripeStatus: "PAST_DUE"},
			want: StatusPastDue,
		},
		{
			name: "lapsed trial expires",
			rec:  &Record{TrialEnd: Int64(ts - 1)},
			want: StatusExpired,
		},
		{
			name: "checkout completed only",
			rec:  &Record{StripeStatus: "CHECKOUT_COMPLETED"},
			want: StatusExpired,
		},
		{
			name: "bookkeeping only record expires",
			rec:  &Record{LastUpdated: ts},
			want: StatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, until := Resolve(tt.rec, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantUntil, until)
		})
	}
}

func TestResolve_ExemptAlwaysWins(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := now.Unix()

	for _, status := range []string{"", "ACTIVE", "TRIALING", "PAST_DUE", "UNPAID", "CANCELED"} {
		for _, canceled := range []bool{false, true} {
			for _, trialEnd := range []*int64{nil, Int64(ts - 1), Int64(ts + 1)} {
				rec := &Record{
					Exempt:       true,
					StripeStatus: status,
					Canceled:     canceled,
					TrialEnd:     trialEnd,
					GraceUntil:   Int64(ts + 10),
				}
				got, until := Resolve(rec, now)
				assert.Equal(t, StatusExempt, got)
				assert.Nil(t, until)
			}
		}
	}
}

func TestResolve_HardCancellationIsAbsolute(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	rec := &Record{
		StripeStatus:     "ACTIVE",
		Canceled:         true,
		TrialEnd:         Int64(base.Unix() + 1000),
		CurrentPeriodEnd: Int64(base.Unix() + 1000),
	}

	for offset := -2000; offset <= 2000; offset += 250 {
		got, _ := Resolve(rec, base.Add(time.Duration(offset)*time.Second))
		assert.NotEqual(t, StatusActive, got)
		assert.NotEqual(t, StatusTrial, got)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rec := &Record{StripeStatus: "PAST_DUE", GraceUntil: Int64(now.Unix() + 60), CurrentPeriodEnd: Int64(now.Unix() - 60)}

	s1, u1 := Resolve(rec, now)
	s2, u2 := Resolve(rec, now)
	assert.Equal(t, s1, s2)
	assert.Equal(t, u1, u2)
}

func TestIsEntitled(t *testing.T) {
	entitled := map[Status]bool{
		StatusExempt:   true,
		StatusActive:   true,
		StatusTrial:    true,
		StatusGrace:    true,
		StatusCanceled: false,
		StatusPastDue:  false,
		StatusExpired:  false,
		StatusNone:     false,
	}
	for status, want := range entitled {
		assert.Equal(t, want, IsEntitled(status), status)
		assert.Equal(t, want, Resolution{Status: status}.Entitled(), status)
	}
}

func TestShouldApply(t *testing.T) {
	assert.True(t, ShouldApply(nil, "evt_1"))
	assert.True(t, ShouldApply(&Record{}, "evt_1"))
	assert.True(t, ShouldApply(&Record{LastEventID: "evt_2"}, "evt_1"))
	assert.False(t, ShouldApply(&Record{LastEventID: "evt_1"}, "evt_1"))
	assert.True(t, ShouldApply(&Record{LastEventID: "evt_1"}, ""))
}
