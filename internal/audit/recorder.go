package audit

import "sync"

// Recorder is an in-memory audit sink for unit and dev testing.
type Recorder struct {
	mutex   sync.Mutex
	entries []Entry
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(e Entry) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, e)
}

func (r *Recorder) Entries() []Entry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

func (r *Recorder) Last() (Entry, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}
