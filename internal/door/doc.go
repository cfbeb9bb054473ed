// Package door defines the garage door command vocabulary shared by the
// device link, the execution log and the scheduler.
package door
