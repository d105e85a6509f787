// Package speech tracks per-user voice interaction state: which transcript
// message is currently being spoken aloud, and whether a single-shot voice
// capture is open. Audio I/O happens on the client; this bridge is the
// authoritative state so that at most one utterance plays per user and a
// second toggle on the same message stops it instead of layering playback.
package speech

import (
	"errors"
	"strings"
	"sync"

	"github.com/fitbuddy/go-coach-backend/internal/format"
)

// ErrCaptureActive is returned when a capture is started while another one is
// still open for the same user. Recognition is single-shot.
var ErrCaptureActive = errors.New("a voice capture is already active")

// Utterance is the currently playing speech output for a user.
type Utterance struct {
	MessageID string `json:"message_id"`
	// Text is the speech-ready rendition of the message (tags and markers
	// stripped, newlines collapsed).
	Text string `json:"text"`
}

// Bridge holds the per-user utterance and capture state. Safe for concurrent
// use.
type Bridge struct {
	mu         sync.Mutex
	utterances map[string]*Utterance // userID -> playing utterance
	captures   map[string]bool       // userID -> capture open
}

// NewBridge returns an empty speech bridge.
func NewBridge() *Bridge {
	return &Bridge{
		utterances: make(map[string]*Utterance),
		captures:   make(map[string]bool),
	}
}

// Toggle starts speaking a message, or stops it when that same message is
// already playing. Starting while a different message plays replaces it, so
// one utterance at most is active per user. It returns the utterance now
// playing, or nil when the toggle stopped playback.
func (b *Bridge) Toggle(userID, messageID, content string) *Utterance {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.utterances[userID]; ok && cur.MessageID == messageID {
		delete(b.utterances, userID)
		return nil
	}
	u := &Utterance{MessageID: messageID, Text: format.SpeechText(content)}
	b.utterances[userID] = u
	return u
}

// Current returns the utterance playing for the user, or nil.
func (b *Bridge) Current(userID string) *Utterance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.utterances[userID]
}

// Stop halts any playback for the user. Stopping an idle user is a no-op.
func (b *Bridge) Stop(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.utterances, userID)
}

// StartCapture opens a single-shot voice capture for the user. Playback is
// stopped first so the microphone never competes with speech output.
func (b *Bridge) StartCapture(userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.captures[userID] {
		return ErrCaptureActive
	}
	delete(b.utterances, userID)
	b.captures[userID] = true
	return nil
}

// FinishCapture closes the user's capture and returns the trimmed transcript.
// The capture auto-terminates: finishing twice is harmless and an empty
// transcript simply yields "".
func (b *Bridge) FinishCapture(userID, transcript string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.captures, userID)
	return strings.TrimSpace(transcript)
}

// Capturing reports whether the user has an open capture.
func (b *Bridge) Capturing(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.captures[userID]
}
