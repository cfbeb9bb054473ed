// Package devicelink owns the single live connection to the garage door
// controller.
//
// Two transports implement Link:
//   - SocketLink: the controller dials the core's WebSocket endpoint and
//     identifies with the shared device key. A newer identified
//     connection replaces (and closes) an older one.
//   - MQTTLink: commands are published to a broker topic the controller
//     subscribes to.
//
// Send reports success only after the transport has accepted the
// payload, so callers can record a delivery without guessing.
package devicelink
