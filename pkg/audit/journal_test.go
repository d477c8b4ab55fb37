package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerbridge/sellerbridge/pkg/correlation"
)

func newTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "history.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestRecordAndRecent(t *testing.T) {
	j, _ := newTestJournal(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, reply := range []string{"first", "second", "third"} {
		require.NoError(t, j.Record(correlation.HistoryRecord{
			Token:     "CUST1-0000000" + string(rune('a'+i)),
			Customer:  "Ali",
			Original:  "where is my order",
			Reply:     reply,
			RepliedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := j.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Reply)
	assert.Equal(t, "second", recent[1].Reply)
	assert.Equal(t, "Ali", recent[0].Customer)
	assert.True(t, base.Add(2*time.Minute).Equal(recent[0].RepliedAt))

	n, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReopenKeepsRecords(t *testing.T) {
	j, path := newTestJournal(t)
	require.NoError(t, j.Record(correlation.HistoryRecord{Token: "t", Original: "o", Reply: "r", RepliedAt: time.Now()}))
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournalAsHistorySink(t *testing.T) {
	j, _ := newTestJournal(t)
	store := correlation.NewStore(correlation.Options{Sink: j})

	token := store.Create(correlation.ExternalMessage{Sender: "Siti", Text: "is this in stock?"})
	_, err := store.AppendHistory(token, "yes")
	require.NoError(t, err)

	recent, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, token, recent[0].Token)
	assert.Equal(t, "is this in stock?", recent[0].Original)
}
