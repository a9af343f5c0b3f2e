package ontology

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MovementEpisode is the root JSON-LD document published when a
// sustained movement episode starts or ends
type MovementEpisode struct {
	Context   map[string]interface{} `json:"@context"`
	Type      string                 `json:"@type"`
	ID        string                 `json:"@id"`
	Device    string                 `json:"stride:device"`
	Movement  Movement               `json:"stride:movement"`
	StartedAt time.Time              `json:"stride:startedAt"`
	EndedAt   *time.Time             `json:"stride:endedAt,omitempty"`
	DayOfWeek string                 `json:"stride:dayOfWeek"`
	TimeOfDay string                 `json:"stride:timeOfDay"`
	Duration  string                 `json:"stride:duration,omitempty"`
	Daylight  *DaylightContext       `json:"stride:hadDaylightContext,omitempty"`
}

// Movement describes the classified movement for an episode
type Movement struct {
	Type       string  `json:"@type"`
	Name       string  `json:"name"`
	Confidence float64 `json:"stride:confidence"`
}

// DaylightContext captures the sun position when the episode started
type DaylightContext struct {
	Type           string  `json:"@type"`
	ID             string  `json:"@id"`
	SunAltitude    float64 `json:"stride:sunAltitude"`
	TheoreticalLux float64 `json:"stride:theoreticalLux"`
	IsDaytime      bool    `json:"stride:isDaytime"`
}

// NewEpisode creates a new movement episode document
func NewEpisode(device string, movement Movement, startedAt time.Time) *MovementEpisode {
	return &MovementEpisode{
		Context:   GetDefaultContext(),
		Type:      "stride:MovementEpisode",
		ID:        fmt.Sprintf("urn:uuid:%s", uuid.New().String()),
		Device:    device,
		Movement:  movement,
		StartedAt: startedAt,
		DayOfWeek: startedAt.Weekday().String(),
		TimeOfDay: getTimeOfDay(startedAt),
	}
}

func getTimeOfDay(t time.Time) string {
	hour := t.Hour()
	switch {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	case hour < 21:
		return "evening"
	default:
		return "night"
	}
}
