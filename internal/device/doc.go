// Package device implements the device registry and the MQTT control
// plane built on top of it.
//
// # Architecture
//
//	           HTTP / directive layer
//	                  |
//	   +--------------+--------------+
//	   |                             |
//	Dispatcher                    Registry
//	   |   \                      /   |
//	   |    +--- FindOwned ------+    |
//	   |                              |
//	 MQTT publish              SQLite (devices)
//	                                  ^
//	Reconciler ---- SetPowerState ----+
//	   ^
//	 MQTT subscribe (users/+/devices/+/state)
//
// The Registry owns device records and enforces ownership: every lookup
// and mutation is scoped to a user, and a device belonging to someone
// else is indistinguishable from one that does not exist.
//
// The Dispatcher turns power intents into MQTT command publishes. It
// persists the optimistic power state only after the broker has
// acknowledged the publish, so a failed send never moves the registry.
//
// The Reconciler consumes device state reports from the shared state
// topic filter and folds them back into the registry, last write wins.
// It is deliberately forgiving: malformed payloads and unknown devices
// are logged and dropped, never escalated.
//
// # Concurrency
//
// Registry and Repository methods are safe for concurrent use; SQLite
// is the single serialization point for device state. The Reconciler
// runs on the MQTT client's handler goroutines and the Dispatcher on
// request goroutines, with no coordination between them beyond the
// database.
package device
