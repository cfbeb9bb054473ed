// Package schedule keeps recurring door commands in sync with cron timers.
//
// Definitions are persisted in the schedules table. The Registry mirrors
// the enabled ones as robfig/cron entries evaluated in one configured
// timezone; each fire dispatches the stored action with source SCHEDULED.
//
// Fires never remove or disable a job. A failed fire is logged and the job
// fires again at its next due time.
package schedule
