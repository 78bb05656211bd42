package mqtt

import "errors"

// Sentinel errors for MQTT operations. Check with errors.Is().
var (
	// ErrNotConnected indicates the client is not connected to the broker.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrSubscribeFailed indicates a subscription could not be established.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrDisabled indicates MQTT integration is disabled in config.
	ErrDisabled = errors.New("mqtt: disabled in configuration")
)
