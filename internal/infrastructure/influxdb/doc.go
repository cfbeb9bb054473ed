// Package influxdb mirrors delivered door commands into InfluxDB as
// time-series points.
//
// Writes go through the client's non-blocking batch API, so a slow or
// unreachable server never delays a dispatch. Asynchronous write errors
// are reported through SetOnError.
//
// Configuration:
//
//	influxdb:
//	  enabled: true
//	  url: "http://localhost:8086"
//	  org: "home"
//	  bucket: "garage"
//	  batch_size: 100
//	  flush_interval: 10   # seconds
package influxdb
