// Package audit writes the append-only security event log. Every
// security-relevant event (logins, logouts, registrations, denied or
// expired access) becomes one CSV row, separate from operational logs.
package audit

import (
	"encoding/csv"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Placeholder marks a field with no value, e.g. the username of an
// unauthenticated request.
const Placeholder = "-"

var header = []string{"time", "level", "event", "username", "session_id", "extra"}

type Entry struct {
	Time      time.Time
	Level     string
	Event     string
	Username  string
	SessionID string
	Extra     string
}

// Log is the audit sink consumed by the handlers and the access gate.
// The file-backed implementation is FileLog; tests use Recorder.
type Log interface {
	Record(e Entry)
}

// FileLog appends entries to a CSV file, creating it with a header row
// on first write. Writes are serialized; a sink failure is logged but
// never propagated to the request that triggered the event.
type FileLog struct {
	path  string
	mutex sync.Mutex
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (l *FileLog) Record(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Username == "" {
		e.Username = Placeholder
	}
	if e.SessionID == "" {
		e.SessionID = Placeholder
	}
	if e.Extra == "" {
		e.Extra = Placeholder
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	writeHeader := false
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Errorf("audit log: open %s: %s", l.path, err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Errorf("audit log: close %s: %s", l.path, err)
		}
	}()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			log.Errorf("audit log: write header: %s", err)
			return
		}
	}
	if err := w.Write([]string{
		e.Time.Format("2006-01-02 15:04:05"),
		e.Level, e.Event, e.Username, e.SessionID, e.Extra,
	}); err != nil {
		log.Errorf("audit log: write entry: %s", err)
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Errorf("audit log: flush: %s", err)
	}
}
