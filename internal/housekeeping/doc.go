// Package housekeeping runs periodic maintenance jobs (reconciliation,
// watchdog pings) on robfig/cron triggers. Jobs execute on the task engine;
// this package only decides when.
package housekeeping
