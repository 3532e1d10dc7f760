package common

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// FormatBalance formats a money amount with thousand separators
func FormatBalance(balance int64) string {
	if balance < 0 {
		return "-" + FormatBalance(-balance)
	}

	str := fmt.Sprintf("%d", balance)
	n := len(str)
	if n <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}
	return result.String()
}

// FormatDiscordTimestamp formats a time as a Discord timestamp that displays in user's local timezone
// Format types: "t" = short time, "T" = long time, "d" = short date, "D" = long date,
// "f" = short date/time, "F" = long date/time, "R" = relative time
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}

// FormatDuration renders d as e.g. "3h 4m 5s", dropping zero units
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Round(time.Second)

	h := int64(d / time.Hour)
	m := int64(d % time.Hour / time.Minute)
	s := int64(d % time.Minute / time.Second)

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// FormatPrice renders a stock price to cents
func FormatPrice(p float64) string {
	return fmt.Sprintf("§%.2f", p)
}

func UserMention(id int64) string {
	return fmt.Sprintf("<@%d>", id)
}

func ChannelMention(id int64) string {
	return fmt.Sprintf("<#%d>", id)
}

func RoleMention(id int64) string {
	return fmt.Sprintf("<@&%d>", id)
}

// Truncate shortens s to at most max bytes, ending in "..." and never
// splitting a rune
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
