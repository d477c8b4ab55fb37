package correlation

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(text string) ExternalMessage {
	return ExternalMessage{ID: "id-" + text, Sender: "Ali", Text: text, ObservedAt: time.Now()}
}

func TestCreateBindResolveRoundTrip(t *testing.T) {
	s := NewStore(Options{})

	token := s.Create(msg("where is my order"))
	require.NoError(t, s.BindOutboundID(token, "1001"))

	got, ok := s.ResolveByOutboundID("1001")
	require.True(t, ok)
	assert.Equal(t, token, got)

	m, ok := s.GetMessage(token)
	require.True(t, ok)
	assert.Equal(t, "where is my order", m.Text)
}

func TestResolveUnknown(t *testing.T) {
	s := NewStore(Options{})
	s.Create(msg("unbound"))

	_, ok := s.ResolveByOutboundID("")
	assert.False(t, ok)
	_, ok = s.ResolveByOutboundID("nope")
	assert.False(t, ok)
	_, ok = s.GetMessage("CUST0-deadbeef")
	assert.False(t, ok)
}

func TestTokensAreUniqueWithinSameMillisecond(t *testing.T) {
	s := NewStore(Options{})
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }

	pattern := regexp.MustCompile(`^CUST1700000000000-[0-9a-f]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		token := s.Create(msg("x"))
		assert.Regexp(t, pattern, token)
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

func TestBindOnce(t *testing.T) {
	s := NewStore(Options{})
	a := s.Create(msg("a"))
	b := s.Create(msg("b"))

	require.NoError(t, s.BindOutboundID(a, "1"))
	assert.Error(t, s.BindOutboundID(a, "2"), "rebinding a token")
	assert.Error(t, s.BindOutboundID(b, "1"), "reusing an outbound id")
	assert.Error(t, s.BindOutboundID("missing", "3"))
	assert.Error(t, s.BindOutboundID(b, ""))

	got, _ := s.ResolveByOutboundID("1")
	assert.Equal(t, a, got)
}

func TestEvictionDropsOldest(t *testing.T) {
	s := NewStore(Options{MaxEntries: 2})
	a := s.Create(msg("a"))
	require.NoError(t, s.BindOutboundID(a, "1"))
	b := s.Create(msg("b"))
	c := s.Create(msg("c"))

	_, ok := s.GetMessage(a)
	assert.False(t, ok)
	_, ok = s.ResolveByOutboundID("1")
	assert.False(t, ok)

	_, ok = s.GetMessage(b)
	assert.True(t, ok)
	_, ok = s.GetMessage(c)
	assert.True(t, ok)

	entries, _, _ := s.Counts()
	assert.Equal(t, 2, entries)
}

func TestDiscardOnlyUnbound(t *testing.T) {
	s := NewStore(Options{})
	a := s.Create(msg("a"))
	b := s.Create(msg("b"))
	require.NoError(t, s.BindOutboundID(b, "2"))

	s.Discard(a)
	s.Discard(b)

	_, ok := s.GetMessage(a)
	assert.False(t, ok)
	_, ok = s.GetMessage(b)
	assert.True(t, ok)
}

type recordingSink struct {
	records []HistoryRecord
	err     error
}

func (r *recordingSink) Record(rec HistoryRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

func TestAppendHistory(t *testing.T) {
	sink := &recordingSink{}
	s := NewStore(Options{Sink: sink})
	token := s.Create(msg("hello"))
	require.NoError(t, s.BindOutboundID(token, "9"))

	entries, pending, history := s.Counts()
	assert.Equal(t, []int{1, 1, 0}, []int{entries, pending, history})

	rec, err := s.AppendHistory(token, "hi there")
	require.NoError(t, err)
	assert.Equal(t, "Ali", rec.Customer)
	assert.Equal(t, "hello", rec.Original)
	assert.Equal(t, "hi there", rec.Reply)

	assert.Len(t, s.History(), 1)
	assert.Len(t, sink.records, 1)

	// The entry survives so the operator can send a follow-up.
	_, ok := s.GetMessage(token)
	assert.True(t, ok)
	entries, pending, history = s.Counts()
	assert.Equal(t, []int{1, 0, 1}, []int{entries, pending, history})

	_, err = s.AppendHistory("unknown", "x")
	assert.Error(t, err)
	assert.Len(t, s.History(), 1)
}

func TestAppendHistorySinkFailureKeepsRecord(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	s := NewStore(Options{Sink: sink})
	token := s.Create(msg("hello"))

	_, err := s.AppendHistory(token, "reply")
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, s.History(), 1)
}

func TestHistoryCapacity(t *testing.T) {
	s := NewStore(Options{MaxHistory: 2})
	token := s.Create(msg("hello"))
	for _, r := range []string{"1", "2", "3"} {
		_, err := s.AppendHistory(token, r)
		require.NoError(t, err)
	}

	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, "2", h[0].Reply)
	assert.Equal(t, "3", h[1].Reply)
}
