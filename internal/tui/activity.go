package tui

import "time"

// ActivityInfo is one line in the sidebar's activity feed
type ActivityInfo struct {
	Kind    string // "push", "refresh", "action", "error"
	Summary string
	At      time.Time
}

const maxActivity = 15

// appendActivity adds an entry, keeping only the newest maxActivity
func appendActivity(feed []ActivityInfo, info ActivityInfo) []ActivityInfo {
	feed = append(feed, info)
	if len(feed) > maxActivity {
		feed = feed[len(feed)-maxActivity:]
	}
	return feed
}
