// Package dispatch is the single path that sends a door command and
// records it.
//
// The API (source APP) and the schedule registry (source SCHEDULED) both
// call Facade.Dispatch. A command is logged only after the device link
// reports that it was transmitted; a failed or skipped delivery leaves the
// execution log untouched.
package dispatch
