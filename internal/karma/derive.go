package karma

import (
	"time"

	"github.com/google/uuid"
	"github.com/target/karmabot/internal/domain"
)

// Reserved read-only subjects: exact thing text matching the two
// mathematical constants. Mentions reply with a fixed literal value
// and are never written to the ledger.
const (
	piSubject    = "π"
	eulerSubject = "ℇ"

	piValue    = "3.14159265358979323846264338327950288419716939937510582"
	eulerValue = "2.71828182845904523536028747135266249775724709369995957"
)

// AbortReason reports why derivation stopped mid-message. These are
// expected control conditions, not errors; transactions derived before
// the abort remain valid.
type AbortReason int

const (
	AbortNone AbortReason = iota
	// AbortSelfPraise: the gifter gave themselves positive karma.
	AbortSelfPraise
	// AbortSelfDeprecation: the gifter gave themselves negative karma.
	AbortSelfDeprecation
	// AbortRateLimited: the gifter exceeded the hourly gift limit.
	AbortRateLimited
)

func (r AbortReason) String() string {
	switch r {
	case AbortSelfPraise:
		return "self_praise"
	case AbortSelfDeprecation:
		return "self_deprecation"
	case AbortRateLimited:
		return "rate_limited"
	}
	return "none"
}

// ConstantMention is a reserved-subject match: replied to, never stored.
type ConstantMention struct {
	Subject domain.Subject
	Value   string
}

// Derivation is the outcome of deriving one message's candidates.
type Derivation struct {
	Transactions []domain.KarmaTransaction
	Constants    []ConstantMention
	Abort        AbortReason
}

// DeriveParams carries the per-message inputs for Derive.
type DeriveParams struct {
	GifterID    string
	WorkspaceID string
	Now         time.Time
	TTL         time.Duration
	RateLimit   int
	// PreCount seeds the rate check: the gifter's accepted transactions
	// in the trailing window, queried once before the message.
	PreCount int
}

type subjectKey struct {
	kind domain.Kind
	id   string
}

// Derive processes candidates in matcher order and produces validated
// transactions. First mention of a (kind, id) pair wins; repeats are
// dropped silently. Self-karma and an exhausted rate budget abort the
// remaining derivation but keep what was already derived.
func Derive(candidates []Candidate, p DeriveParams) Derivation {
	var d Derivation
	seen := make(map[subjectKey]struct{})

	for _, cand := range candidates {
		subject := resolveSubject(cand)

		key := subjectKey{kind: subject.Kind, id: subject.ID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if subject.Kind == domain.KindUser && subject.ID == p.GifterID {
			if cand.RunSign > 0 {
				d.Abort = AbortSelfPraise
			} else {
				d.Abort = AbortSelfDeprecation
			}
			return d
		}

		if value, ok := constantValue(subject); ok {
			d.Constants = append(d.Constants, ConstantMention{Subject: subject, Value: value})
			continue
		}

		if p.RateLimit > 0 && p.PreCount+len(d.Transactions)+1 > p.RateLimit {
			d.Abort = AbortRateLimited
			return d
		}

		d.Transactions = append(d.Transactions, domain.KarmaTransaction{
			ID:             uuid.New(),
			WorkspaceID:    p.WorkspaceID,
			Kind:           subject.Kind,
			SubjectID:      subject.ID,
			SubjectDisplay: subject.Display,
			Quantity:       cand.Quantity(),
			GifterID:       p.GifterID,
			CreatedAt:      p.Now,
			ExpiresAt:      p.Now.Add(p.TTL),
		})
	}

	return d
}

// resolveSubject builds the subject identity and display form for a
// candidate. Platform references display as re-assembled mention
// tokens; quoted things display with straight double quotes regardless
// of the quote style used.
func resolveSubject(cand Candidate) domain.Subject {
	s := domain.Subject{Kind: cand.Kind, ID: cand.RawSubject}

	switch cand.Kind {
	case domain.KindUser:
		s.Display = "<@" + cand.RawSubject + ">"
	case domain.KindChannel:
		s.Display = "<#" + cand.RawSubject + ">"
	case domain.KindGroup:
		s.Display = "<!subteam^" + cand.RawSubject + ">"
	case domain.KindThing:
		if cand.Quoted {
			s.Display = `"` + cand.RawSubject + `"`
		} else {
			s.Display = cand.RawSubject
		}
	}

	return s
}

func constantValue(subject domain.Subject) (string, bool) {
	if subject.Kind != domain.KindThing {
		return "", false
	}
	switch subject.ID {
	case piSubject:
		return piValue, true
	case eulerSubject:
		return eulerValue, true
	}
	return "", false
}
