package load

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// MarshalEvent serialises an Event to JSON.
func MarshalEvent(e *Event) ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserialises an Event from JSON.
func UnmarshalEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// MarshalStats serialises CycleStats to JSON.
func MarshalStats(s *CycleStats) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalStats deserialises CycleStats from JSON.
func UnmarshalStats(data []byte) (*CycleStats, error) {
	var s CycleStats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// HashFragment returns the SHA-256 hex digest of a raw HTML fragment.
// Used to fingerprint source fragments independently of load identity.
func HashFragment(html []byte) string {
	h := sha256.Sum256(html)
	return fmt.Sprintf("%x", h)
}
