// Package quotes picks motivational quotes for reminders that have no
// description of their own.
//
// Recently shown quotes are kept in a small history persisted to a state
// file so restarts do not repeat them.
package quotes
