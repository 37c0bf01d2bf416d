// Package notify is the boundary between page components and whatever
// renders them.  Components report messages, countdown text, login prompts
// and navigation through a Notifier; the kiosk API reads them back from a
// Recorder.
package notify

import (
	"sync"
	"time"
)

// Kind classifies a message so the surface can style it.
type Kind string

const (
	Info     Kind = "info"
	Success  Kind = "success"
	Error    Kind = "error"
	Conflict Kind = "conflict"
	Expired  Kind = "expired"
	Limit    Kind = "limit"
)

// Countdown names.
const (
	HoldCountdown = "hold"
	QRCountdown   = "qr"
)

// Notifier receives UI side effects from page components.
type Notifier interface {
	Notify(kind Kind, text string)
	PromptLogin()
	Countdown(name, text string)
	Navigate(path string)
}

// Message is one notification.
type Message struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Recorder is a Notifier that keeps the latest state for polling clients.
// It is safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	now         func() time.Time
	messages    []Message
	countdowns  map[string]string
	loginPrompt bool
	navigation  string
	limit       int
}

// NewRecorder returns a Recorder keeping the last 20 messages.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now, countdowns: map[string]string{}, limit: 20}
}

func (r *Recorder) Notify(kind Kind, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Kind: kind, Text: text, At: r.now()})
	if len(r.messages) > r.limit {
		r.messages = r.messages[len(r.messages)-r.limit:]
	}
}

func (r *Recorder) PromptLogin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loginPrompt = true
}

func (r *Recorder) Countdown(name, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if text == "" {
		delete(r.countdowns, name)
		return
	}
	r.countdowns[name] = text
}

func (r *Recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigation = path
}

// View is a snapshot of the recorder.
type View struct {
	Messages    []Message         `json:"messages"`
	Countdowns  map[string]string `json:"countdowns"`
	LoginPrompt bool              `json:"loginPrompt"`
	Navigation  string            `json:"navigation,omitempty"`
}

// View returns a copy of the current state.
func (r *Recorder) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	cd := make(map[string]string, len(r.countdowns))
	for k, v := range r.countdowns {
		cd[k] = v
	}
	return View{
		Messages:    append([]Message(nil), r.messages...),
		Countdowns:  cd,
		LoginPrompt: r.loginPrompt,
		Navigation:  r.navigation,
	}
}

// Last returns the most recent message, if any.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// CountdownText returns the current text of a countdown.
func (r *Recorder) CountdownText(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countdowns[name]
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(Kind, string)      {}
func (Nop) PromptLogin()             {}
func (Nop) Countdown(string, string) {}
func (Nop) Navigate(string)          {}
