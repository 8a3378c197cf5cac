// Package badge implements the badge presence toggle: the first scan of a tag
// checks its holder in, scanning the same tag again checks them out.
package badge
