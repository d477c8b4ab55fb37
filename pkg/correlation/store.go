// Package correlation links forwarded customer messages to operator
// notifications and records relayed replies. State is in memory only and is
// lost on restart.
package correlation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExternalMessage is one customer message observed on the seller chat.
type ExternalMessage struct {
	ID         string
	Sender     string
	Text       string
	ObservedAt time.Time
}

// HistoryRecord is written once a reply has been relayed.
type HistoryRecord struct {
	Token     string
	Customer  string
	Original  string
	Reply     string
	RepliedAt time.Time
}

// HistorySink receives every appended record, e.g. an audit journal.
type HistorySink interface {
	Record(rec HistoryRecord) error
}

type entry struct {
	msg        ExternalMessage
	outboundID string
}

// Options bound the store. Zero values keep everything for the process lifetime.
type Options struct {
	MaxEntries int
	MaxHistory int
	Sink       HistorySink
}

// Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	opts       Options
	entries    map[string]*entry
	order      []string
	byOutbound map[string]string
	history    []HistoryRecord
	now        func() time.Time
}

func NewStore(opts Options) *Store {
	return &Store{
		opts:       opts,
		entries:    make(map[string]*entry),
		byOutbound: make(map[string]string),
		now:        time.Now,
	}
}

// Create stores a snapshot of msg and returns its new token.
func (s *Store) Create(msg ExternalMessage) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := s.newToken()
	for s.entries[token] != nil {
		token = s.newToken()
	}
	s.entries[token] = &entry{msg: msg}
	s.order = append(s.order, token)
	s.evict()
	return token
}

func (s *Store) newToken() string {
	return fmt.Sprintf("CUST%d-%s", s.now().UnixMilli(), uuid.New().String()[:8])
}

// evict drops the oldest entries beyond MaxEntries. Caller holds mu.
func (s *Store) evict() {
	if s.opts.MaxEntries <= 0 {
		return
	}
	for len(s.order) > s.opts.MaxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		if e, ok := s.entries[oldest]; ok {
			if e.outboundID != "" {
				delete(s.byOutbound, e.outboundID)
			}
			delete(s.entries, oldest)
		}
	}
}

// BindOutboundID records the notification id for token. A token is bound once.
func (s *Store) BindOutboundID(token, outboundID string) error {
	if outboundID == "" {
		return fmt.Errorf("bind %s: empty outbound id", token)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return fmt.Errorf("bind %s: unknown token", token)
	}
	if e.outboundID != "" {
		return fmt.Errorf("bind %s: already bound to %s", token, e.outboundID)
	}
	if other, ok := s.byOutbound[outboundID]; ok {
		return fmt.Errorf("bind %s: outbound id %s belongs to %s", token, outboundID, other)
	}
	e.outboundID = outboundID
	s.byOutbound[outboundID] = token
	return nil
}

// ResolveByOutboundID returns the token bound to outboundID.
func (s *Store) ResolveByOutboundID(outboundID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.byOutbound[outboundID]
	return token, ok
}

// GetMessage returns the snapshot stored for token.
func (s *Store) GetMessage(token string) (ExternalMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[token]
	if !ok {
		return ExternalMessage{}, false
	}
	return e.msg, true
}

// Discard removes an entry that was never bound, used when the notification
// could not be sent.
func (s *Store) Discard(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok || e.outboundID != "" {
		return
	}
	delete(s.entries, token)
	for i, t := range s.order {
		if t == token {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// AppendHistory records a relayed reply for token. The entry itself is kept.
func (s *Store) AppendHistory(token, reply string) (HistoryRecord, error) {
	s.mu.Lock()
	e, ok := s.entries[token]
	if !ok {
		s.mu.Unlock()
		return HistoryRecord{}, fmt.Errorf("append history: unknown token %s", token)
	}
	rec := HistoryRecord{
		Token:     token,
		Customer:  e.msg.Sender,
		Original:  e.msg.Text,
		Reply:     reply,
		RepliedAt: s.now(),
	}
	s.history = append(s.history, rec)
	if max := s.opts.MaxHistory; max > 0 && len(s.history) > max {
		s.history = append([]HistoryRecord(nil), s.history[len(s.history)-max:]...)
	}
	sink := s.opts.Sink
	s.mu.Unlock()

	if sink != nil {
		if err := sink.Record(rec); err != nil {
			return rec, fmt.Errorf("journal history: %w", err)
		}
	}
	return rec, nil
}

// History returns a copy of the history log, oldest first.
func (s *Store) History() []HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]HistoryRecord(nil), s.history...)
}

// Counts returns the number of live entries, entries still awaiting a reply
// (bound, no history yet) and history records.
func (s *Store) Counts() (entries, pending, history int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	replied := make(map[string]bool, len(s.history))
	for _, h := range s.history {
		replied[h.Token] = true
	}
	for token, e := range s.entries {
		if e.outboundID != "" && !replied[token] {
			pending++
		}
	}
	return len(s.entries), pending, len(s.history)
}
