package redis

import "fmt"

// Key construction helpers based on redis-schema.md

// IMUSampleKey returns the key for raw IMU sample data (sorted set scored by timestamp)
// Pattern: sensor:imu:{device}
func IMUSampleKey(device string) string {
	return fmt.Sprintf("sensor:imu:%s", device)
}

// IMUMetaKey returns the key for IMU sensor metadata (hash)
// Pattern: meta:imu:{device}
func IMUMetaKey(device string) string {
	return fmt.Sprintf("meta:imu:%s", device)
}

// MovementStateKey returns the key for the latest movement state (hash)
// Pattern: movement:state:{device}
func MovementStateKey(device string) string {
	return fmt.Sprintf("movement:state:%s", device)
}

// MovementContextKey returns the key for the latest movement context document (string)
// Pattern: movement:context:{device}
func MovementContextKey(device string) string {
	return fmt.Sprintf("movement:context:%s", device)
}

// MovementEventsKey returns the key for the movement event history (list, newest first)
// Pattern: movement:events:{device}
func MovementEventsKey(device string) string {
	return fmt.Sprintf("movement:events:%s", device)
}
