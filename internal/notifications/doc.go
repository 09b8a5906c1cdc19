// Package notifications delivers optional push notifications via ntfy.
//
// The tracker reports batch conversions and full-export milestones; the
// daemon reports startup problems. When no ntfy topic is configured every
// call is a no-op, so callers never guard notification sends.
package notifications
