// Package mqtt wraps the paho client for the garage core.
//
// It handles broker connection (TLS, credentials, auto-reconnect),
// publishes the core's online/offline state as a retained message on
// garage/system/status with a last will for crashes, and restores
// subscriptions after a reconnect.
//
// The MQTT device link publishes door commands through Client.Publish.
package mqtt
