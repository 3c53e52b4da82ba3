package query

import (
	"reflect"
	"testing"
)

func TestExtractPatterns(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantUsers []string
		wantIPs   []string
		wantEvent EventCategory
		wantTime  *TimeRange
		wantInt   Intent
	}{
		{
			name:      "full query",
			text:      "failed login by user admin from 10.0.0.5 in the last 2 hours",
			wantUsers: []string{"admin"},
			wantIPs:   []string{"10.0.0.5"},
			wantEvent: EventFailedLogin,
			wantTime:  &TimeRange{Amount: 2, Unit: UnitHour},
			wantInt:   IntentPlainSearch,
		},
		{
			name:      "aggregation only",
			text:      "count per ip",
			wantUsers: []string{},
			wantIPs:   []string{},
			wantEvent: EventNone,
			wantInt:   IntentAggregate,
		},
		{
			name:      "time without user",
			text:      "failed login last 24 hours",
			wantUsers: []string{},
			wantIPs:   []string{},
			wantEvent: EventFailedLogin,
			wantTime:  &TimeRange{Amount: 24, Unit: UnitHour},
			wantInt:   IntentPlainSearch,
		},
		{
			name:      "accented user name",
			text:      "failed login by user josé",
			wantUsers: []string{"josé"},
			wantIPs:   []string{},
			wantEvent: EventFailedLogin,
			wantInt:   IntentPlainSearch,
		},
		{
			name:      "umlaut user with time",
			text:      "user müller last 2 hours",
			wantUsers: []string{"müller"},
			wantIPs:   []string{},
			wantEvent: EventNone,
			wantTime:  &TimeRange{Amount: 2, Unit: UnitHour},
			wantInt:   IntentPlainSearch,
		},
		{
			name:      "account starting with non-ascii letter",
			text:      "account Łukasz",
			wantUsers: []string{"Łukasz"},
			wantIPs:   []string{},
			wantEvent: EventNone,
			wantInt:   IntentPlainSearch,
		},
		{
			name:      "trailing dot is not part of the name",
			text:      "logins by user admin.",
			wantUsers: []string{"admin"},
			wantIPs:   []string{},
			wantEvent: EventNone,
			wantInt:   IntentPlainSearch,
		},
		{
			name:      "by keyword",
			text:      "failed login by admin",
			wantUsers: []string{"admin"},
			wantIPs:   []string{},
			wantEvent: EventFailedLogin,
			wantInt:   IntentPlainSearch,
		},
		{
			name:      "account with email-like id",
			text:      "successful login for account svc-backup@corp.local past 3 days",
			wantUsers: []string{"svc-backup@corp.local"},
			wantIPs:   []string{},
			wantEvent: EventSuccessLogin,
			wantTime:  &TimeRange{Amount: 3, Unit: UnitDay},
			wantInt:   IntentPlainSearch,
		},
		{
			name:      "surrounding whitespace trimmed",
			text:      "   brute force attempts   ",
			wantUsers: []string{},
			wantIPs:   []string{},
			wantEvent: EventSSHBruteforce,
			wantInt:   IntentPlainSearch,
		},
		{
			name:      "empty",
			text:      "",
			wantUsers: []string{},
			wantIPs:   []string{},
			wantEvent: EventNone,
			wantInt:   IntentPlainSearch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPatterns(tt.text)

			if !reflect.DeepEqual(got.Users, tt.wantUsers) {
				t.Errorf("Users = %v, want %v", got.Users, tt.wantUsers)
			}
			if !reflect.DeepEqual(got.IPAddresses, tt.wantIPs) {
				t.Errorf("IPAddresses = %v, want %v", got.IPAddresses, tt.wantIPs)
			}
			if got.EventCategory != tt.wantEvent {
				t.Errorf("EventCategory = %q, want %q", got.EventCategory, tt.wantEvent)
			}
			if !reflect.DeepEqual(got.TimeRange, tt.wantTime) {
				t.Errorf("TimeRange = %+v, want %+v", got.TimeRange, tt.wantTime)
			}
			if got.Intent != tt.wantInt {
				t.Errorf("Intent = %q, want %q", got.Intent, tt.wantInt)
			}
			if got.UsedTagger {
				t.Error("pattern extraction must not report tagger use")
			}
		})
	}
}

func TestExtractPatterns_IPDeduplication(t *testing.T) {
	text := "10.0.0.5 then 192.168.1.1, again 10.0.0.5 and 10.0.0.5"

	got := ExtractPatterns(text).IPAddresses
	want := []string{"10.0.0.5", "192.168.1.1"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("IPAddresses = %v, want %v", got, want)
	}
}

func TestExtractPatterns_UserDeduplication(t *testing.T) {
	got := ExtractPatterns("user root and account root by root").Users

	if !reflect.DeepEqual(got, []string{"root"}) {
		t.Errorf("Users = %v, want [root]", got)
	}
}

func TestExtractIPs_OctetRange(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"0.0.0.0", []string{"0.0.0.0"}},
		{"255.255.255.255", []string{"255.255.255.255"}},
		{"host 172.16.254.1 seen", []string{"172.16.254.1"}},
		{"256.10.10.10", nil},
		{"999.1.1.1", nil},
		{"10.0.0", nil},
		{"1.2.3.4 and 300.2.3.4", []string{"1.2.3.4"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := extractIPs(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractIPs(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractTimeRange(t *testing.T) {
	tests := []struct {
		text string
		want *TimeRange
	}{
		{"last 5 minutes", &TimeRange{Amount: 5, Unit: UnitMinute}},
		{"past 1 minute", &TimeRange{Amount: 1, Unit: UnitMinute}},
		{"LAST 7 DAYS", &TimeRange{Amount: 7, Unit: UnitDay}},
		{"last 12hours", &TimeRange{Amount: 12, Unit: UnitHour}},
		{"past 15 minutes and last 3 days", &TimeRange{Amount: 15, Unit: UnitMinute}},
		{"last 0 hours", nil},
		{"last week", nil},
		{"last 2 weeks", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := extractTimeRange(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractTimeRange(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"count failed logins", IntentAggregate},
		{"logins per ip", IntentAggregate},
		{"GROUP by user", IntentAggregate},
		{"top users", IntentAggregate},
		{"aggregate by host", IntentAggregate},
		{"agg by ip", IntentAggregate},
		{"Histogram of logins", IntentAggregate},
		{"percent of logins", IntentPlainSearch},
		{"network topology", IntentPlainSearch},
		{"counter reset", IntentPlainSearch},
		{"failed login by admin", IntentPlainSearch},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := detectIntent(tt.text); got != tt.want {
				t.Errorf("detectIntent(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
