package notify

import (
	"encoding/json"
	"log"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// AuditLog records every dispatch attempt and every absorbing skip as one
// JSON line in a rotated audit file. A nil *AuditLog is valid and records
// nothing.
type AuditLog struct {
	logger *log.Logger
}

// NewAuditLog creates an audit log writing to logPath with automatic
// rotation.
func NewAuditLog(logPath string) *AuditLog {
	writer := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    100, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}
	return &AuditLog{
		logger: log.New(writer, "", 0), // records carry their own timestamp
	}
}

// LogDispatch records the outcome of a send attempt.
func (a *AuditLog) LogDispatch(summary *ChangeSummary, recipients []string, subject string, sendErr error) {
	if a == nil {
		return
	}
	record := map[string]any{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"item":        summary.Latest.ID,
		"queue":       summary.Latest.QueueID,
		"change_type": summary.ChangeType.Label(),
		"fields":      summary.Fields,
		"recipients":  len(recipients),
		"subject":     subject,
		"result":      "sent",
	}
	if sendErr != nil {
		record["result"] = "failed"
		record["error_message"] = sendErr.Error()
	}

	data, _ := json.Marshal(record)
	a.logger.Println(string(data))
}

// LogSkip records an invocation that terminated in an absorbing state.
func (a *AuditLog) LogSkip(path, reason string) {
	if a == nil {
		return
	}
	record := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"path":      path,
		"result":    "skipped",
		"reason":    reason,
	}

	data, _ := json.Marshal(record)
	a.logger.Println(string(data))
}
