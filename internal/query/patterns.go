package query

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// userPattern captures the identifier after "user", "account", "by user" or "by".
	// Identifiers may hold any Unicode letter and must end on a letter, digit or '_'.
	userPattern = regexp.MustCompile(`(?i)\b(?:user|account|by user|by)\s+([-\p{L}\p{N}_.@]*[\p{L}\p{N}_])`)

	// ipPattern matches dotted quads with every octet in 0-255.
	ipPattern = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d{1,2})\.){3}(?:25[0-5]|2[0-4]\d|1?\d{1,2})\b`)

	// timePattern matches "last|past N minute(s)|hour(s)|day(s)".
	timePattern = regexp.MustCompile(`(?i)\b(?:last|past)\s+(\d+)\s*(minute|minutes|hour|hours|day|days)\b`)

	// intentPattern matches any aggregation cue word.
	intentPattern = regexp.MustCompile(`(?i)\b(?:count|per|group|top|aggregate|agg|histogram)\b`)
)

// extractUsers returns every identifier captured by userPattern, in order.
func extractUsers(text string) []string {
	matches := userPattern.FindAllStringSubmatch(text, -1)
	users := make([]string, 0, len(matches))
	for _, m := range matches {
		users = append(users, m[1])
	}
	return users
}

// extractIPs returns every valid dotted quad in order.
func extractIPs(text string) []string {
	return ipPattern.FindAllString(text, -1)
}

// extractTimeRange returns the first "last N unit" mention. Later mentions
// are ignored and a zero amount counts as no range.
func extractTimeRange(text string) *TimeRange {
	m := timePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	amount, err := strconv.Atoi(m[1])
	if err != nil || amount <= 0 {
		return nil
	}

	unit := strings.ToLower(m[2])
	switch {
	case strings.HasPrefix(unit, "minute"):
		return &TimeRange{Amount: amount, Unit: UnitMinute}
	case strings.HasPrefix(unit, "hour"):
		return &TimeRange{Amount: amount, Unit: UnitHour}
	case strings.HasPrefix(unit, "day"):
		return &TimeRange{Amount: amount, Unit: UnitDay}
	}
	return nil
}

// detectIntent reports aggregate when any cue word appears as a whole word.
func detectIntent(text string) Intent {
	if intentPattern.MatchString(text) {
		return IntentAggregate
	}
	return IntentPlainSearch
}

// ExtractPatterns runs the rule-based extraction alone. It is a pure
// function of text.
func ExtractPatterns(text string) ParsedQuery {
	text = strings.TrimSpace(text)

	users := newOrderedSet()
	for _, u := range extractUsers(text) {
		users.add(u)
	}

	ips := newOrderedSet()
	for _, ip := range extractIPs(text) {
		ips.add(ip)
	}

	return ParsedQuery{
		RawText:       text,
		Users:         users.items,
		IPAddresses:   ips.items,
		EventCategory: DetectEvent(text, DefaultEventTable),
		TimeRange:     extractTimeRange(text),
		Intent:        detectIntent(text),
	}
}
