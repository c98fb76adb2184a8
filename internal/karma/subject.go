package karma

import (
	"strings"

	"github.com/target/karmabot/internal/domain"
)

// ParseSubjectRef interprets a free-form subject reference from a
// command argument, e.g. "/karma show <@U123>". Platform references and
// quoted things resolve with the same precedence as message matching;
// anything else is the whole remaining text as a bare thing.
func ParseSubjectRef(text string) domain.Subject {
	text = strings.TrimSpace(text)

	for _, form := range subjectForms {
		if form.kind == domain.KindThing && !form.quoted {
			break
		}
		loc := form.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		subject := text[loc[2]:loc[3]]
		return resolveSubject(Candidate{Kind: form.kind, RawSubject: subject, Quoted: form.quoted})
	}

	return domain.Subject{Kind: domain.KindThing, ID: text, Display: text}
}

// ConstantKarma reports the fixed literal value for a reserved subject.
func ConstantKarma(subject domain.Subject) (string, bool) {
	return constantValue(subject)
}
