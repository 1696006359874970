package cache

import "strings"

// Key joins namespace parts with ":", e.g. Key("roster", "CAC40").
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
