// Package audit is the execution log: an append-only record of every door
// command that actually reached the controller.
//
// Entries are written only by the dispatch facade and only after the
// device link confirms transmission. When telemetry is configured each
// appended entry is also mirrored to InfluxDB; telemetry never affects
// the append result.
package audit
