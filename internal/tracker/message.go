package tracker

import (
	"encoding/json"
	"time"
)

// ResultMetadataMessage is published to the message bus keyed by job id
// after a job completes (§4.5 step 8).
type ResultMetadataMessage struct {
	JobID        string    `json:"jobId"`
	LobID        string    `json:"lobId"`
	TeamID       string    `json:"teamId"`
	Status       Status    `json:"status"`
	TotalTests   int       `json:"totalTests"`
	TestsPassed  int       `json:"testsPassed"`
	TestsFailed  int       `json:"testsFailed"`
	TestsSkipped int       `json:"testsSkipped"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
}

func (m ResultMetadataMessage) marshal() ([]byte, error) {
	return json.Marshal(m)
}
