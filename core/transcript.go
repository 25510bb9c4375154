package turntaking

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role attributes an utterance to one side of the conversation.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Utterance is one attributed, timestamped unit of finished speech. It is
// immutable once recorded.
type Utterance struct {
	ID   string
	Role Role
	Text string
	At   time.Time
}

// transcriptLog is the ordered record of everything said in one session.
type transcriptLog struct {
	mu         sync.RWMutex
	utterances []Utterance
}

func (l *transcriptLog) append(role Role, text string) Utterance {
	utterance := Utterance{
		ID:   uuid.NewString(),
		Role: role,
		Text: text,
		At:   time.Now(),
	}

	l.mu.Lock()
	l.utterances = append(l.utterances, utterance)
	l.mu.Unlock()

	return utterance
}

// snapshot returns a point-in-time copy of the log.
func (l *transcriptLog) snapshot() []Utterance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	utterances := make([]Utterance, len(l.utterances))
	copy(utterances, l.utterances)
	return utterances
}

func (l *transcriptLog) reset() {
	l.mu.Lock()
	l.utterances = nil
	l.mu.Unlock()
}
