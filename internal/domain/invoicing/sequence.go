package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultSequencePrefix is used when no prefix is configured
const DefaultSequencePrefix = "FAC"

// CodeDuplicateSequence is the DomainError code repositories use when the
// (agency, sequence number) unique index rejects an insert
const CodeDuplicateSequence = "DUPLICATE_SEQUENCE_NUMBER"

// SequenceAllocator hands out the next number for an agency and calendar year
type SequenceAllocator interface {
	Next(ctx context.Context, agencyID uuid.UUID, year int) (int64, error)
}

// SequenceResyncer is implemented by allocators whose counter can fall behind
// the numbers already stored, e.g. after an import. Resync moves the counter
// to at least the highest stored number of the year.
type SequenceResyncer interface {
	Resync(ctx context.Context, agencyID uuid.UUID, year int) error
}

// SequenceNumber is the parsed form of <PREFIX>-<YEAR>-<NNN>
type SequenceNumber struct {
	Prefix string
	Year   int
	Number int64
}

// String formats the number, zero-padding to at least three digits
func (s SequenceNumber) String() string {
	return FormatSequenceNumber(s.Prefix, s.Year, s.Number)
}

// FormatSequenceNumber renders <PREFIX>-<YEAR>-<NNN>
func FormatSequenceNumber(prefix string, year int, n int64) string {
	return fmt.Sprintf("%s-%04d-%03d", prefix, year, n)
}

// ParseSequenceNumber splits a formatted number. The prefix may itself contain dashes.
func ParseSequenceNumber(s string) (SequenceNumber, error) {
	last := strings.LastIndex(s, "-")
	if last <= 0 {
		return SequenceNumber{}, fmt.Errorf("malformed sequence number %q", s)
	}
	mid := strings.LastIndex(s[:last], "-")
	if mid <= 0 {
		return SequenceNumber{}, fmt.Errorf("malformed sequence number %q", s)
	}
	year, err := strconv.Atoi(s[mid+1 : last])
	if err != nil || year < 1000 || year > 9999 {
		return SequenceNumber{}, fmt.Errorf("malformed year in sequence number %q", s)
	}
	n, err := strconv.ParseInt(s[last+1:], 10, 64)
	if err != nil || n < 1 {
		return SequenceNumber{}, fmt.Errorf("malformed counter in sequence number %q", s)
	}
	return SequenceNumber{Prefix: s[:mid], Year: year, Number: n}, nil
}

// MaxSequence returns the highest counter among numbers of the given year, 0 if none
func MaxSequence(numbers []string, year int) int64 {
	var highest int64
	for _, raw := range numbers {
		seq, err := ParseSequenceNumber(raw)
		if err != nil || seq.Year != year {
			continue
		}
		if seq.Number > highest {
			highest = seq.Number
		}
	}
	return highest
}

// NewDuplicateSequenceError reports a sequence number already taken in the agency
func NewDuplicateSequenceError(number string) *shared.DomainError {
	return shared.NewConcurrencyError(CodeDuplicateSequence, "sequence number %s is already used in this agency", number)
}

// IsDuplicateSequence reports whether err is a duplicate sequence number conflict
func IsDuplicateSequence(err error) bool {
	var de *shared.DomainError
	return errors.As(err, &de) && de.Code == CodeDuplicateSequence
}
