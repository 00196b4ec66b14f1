package archive

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// several studies can share one Redis server.
//
// Key pattern: hctorder:{instance_name}:{entity}:{id}
// Channel pattern: hctorder:{instance_name}:session_events

// SessionKey returns the Redis key for a session hash.
// Pattern: hctorder:{instance_name}:session:{session_id}
func SessionKey(instanceName, sessionID string) string {
	return fmt.Sprintf("hctorder:%s:session:%s", instanceName, sessionID)
}

// SessionsIndexKey returns the ZSET of session IDs scored by generation time.
// Pattern: hctorder:{instance_name}:sessions
func SessionsIndexKey(instanceName string) string {
	return fmt.Sprintf("hctorder:%s:sessions", instanceName)
}

// ParticipantKey returns the SET of session IDs generated for a participant.
// Pattern: hctorder:{instance_name}:participant:{participant_id}
func ParticipantKey(instanceName, participantID string) string {
	return fmt.Sprintf("hctorder:%s:participant:%s", instanceName, participantID)
}

// SessionEventsChannel returns the Pub/Sub channel name for session events.
// Pattern: hctorder:{instance_name}:session_events
func SessionEventsChannel(instanceName string) string {
	return fmt.Sprintf("hctorder:%s:session_events", instanceName)
}
