package history

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sellerbridge/sellerbridge/pkg/correlation"
)

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	printRecords(&buf, []correlation.HistoryRecord{{
		Token:     "CUST1700000000000-abcdef12",
		Customer:  "alice",
		Original:  "Is this in stock?",
		Reply:     "Yes, ships today",
		RepliedAt: time.Now(),
	}}, 3)

	out := buf.String()
	assert.Contains(t, out, "Relayed replies (1 of 3)")
	assert.Contains(t, out, "CUST1700000000000-abcdef12")
	assert.Contains(t, out, "Yes, ships today")
}

func TestPrintRecordsEmpty(t *testing.T) {
	var buf bytes.Buffer
	printRecords(&buf, nil, 0)
	assert.Contains(t, buf.String(), "none yet")
}
