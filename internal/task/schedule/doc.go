// Package schedule normalizes reminder schedules into fire instants.
//
// A schedule is either a one-shot instant (Once) or a five-field recurrence
// (Recurring). Fields combine by conjunction: a minute is due only when month,
// day of month, day of week, hour and minute all match. Day of week is
// Monday-first (0 = Monday ... 6 = Sunday).
//
// All computation happens in the location of the reference instant passed to
// Next; callers pass host-local times.
package schedule
