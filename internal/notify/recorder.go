package notify

import "sync"

// Note is one recorded notification.
type Note struct {
	Title string
	Body  string
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	notes []Note
}

func (r *Recorder) Notify(title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Note{Title: title, Body: body})
}

// Notes returns a copy of everything recorded so far.
func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Note(nil), r.notes...)
}

// Titles returns just the titles, in order.
func (r *Recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notes))
	for i, n := range r.notes {
		out[i] = n.Title
	}
	return out
}
