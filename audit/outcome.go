package audit

import (
	"cfsync/common"
	"time"
)

// MaxEntries is the number of outcomes kept; older ones are evicted on append.
const MaxEntries = 50

// Outcome is one audit entry describing one record sync attempt.
type Outcome struct {
	ID         int64         `json:"-"`
	Timestamp  time.Time     `json:"timestamp"`
	IP         string        `json:"ip"`
	RecordName string        `json:"record_name"`
	RecordID   string        `json:"record_id"`
	Status     common.Status `json:"status"`
	Summary    string        `json:"response_summary"`
}
