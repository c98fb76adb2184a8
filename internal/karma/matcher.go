package karma

import (
	"regexp"
	"unicode/utf8"

	"github.com/target/karmabot/internal/domain"
)

const (
	minRunLength = 2
	maxRunLength = 6
)

// Candidate is one subject mention followed by a valid +/- run.
// Transient: produced by Match, consumed by Derive, never persisted.
type Candidate struct {
	Kind        domain.Kind
	RawSubject  string
	Quoted      bool
	StartOffset int
	RunLength   int
	RunSign     int
}

// Quantity returns the signed karma amount encoded by the run:
// sign * (runLength - 1), so "++" is 1 point and "++++++" is 5.
func (c Candidate) Quantity() int {
	return c.RunSign * (c.RunLength - 1)
}

// subjectForm is one structural way a subject can be written. Forms are
// tried in precedence order at each scan position; the regexp is
// anchored and submatch 1 (when present) captures the subject ID text.
type subjectForm struct {
	kind   domain.Kind
	quoted bool
	re     *regexp.Regexp
}

// Precedence order: structured platform references first, then the four
// typographic quote pairs, then straight quotes, then a bare thing.
var subjectForms = []subjectForm{
	{kind: domain.KindGroup, re: regexp.MustCompile(`^<!subteam\^([:A-Z_.0-9]+)\|(?:[^\s]+)>`)},
	{kind: domain.KindChannel, re: regexp.MustCompile(`^<#([A-Z_.0-9]+)\|(?:[^\s]+)>`)},
	{kind: domain.KindUser, re: regexp.MustCompile(`^<@([A-Z_.0-9]+)(?:\|[^>]+)?>`)},
	{kind: domain.KindThing, quoted: true, re: regexp.MustCompile("^‘([^\n’]+)’")},
	{kind: domain.KindThing, quoted: true, re: regexp.MustCompile("^‚([^\n‛]+)‛")},
	{kind: domain.KindThing, quoted: true, re: regexp.MustCompile("^“([^\n”]+)”")},
	{kind: domain.KindThing, quoted: true, re: regexp.MustCompile("^„([^\n‟]+)‟")},
	{kind: domain.KindThing, quoted: true, re: regexp.MustCompile(`^"([^` + "\n" + `"]+)"`)},
	{kind: domain.KindThing, quoted: true, re: regexp.MustCompile(`^'([^` + "\n" + `']+)'`)},
	{kind: domain.KindThing, re: regexp.MustCompile("^[^\\s“”\"+\\-]+")},
}

// Match scans sanitized text left to right and returns candidates in
// scan order. At each position the subject forms are tried in
// precedence order; a form only matches when a run of 2-6 identical
// '+' or '-' characters follows (optionally after spaces/tabs).
// A successful match consumes subject, gap, and run, so consumed text
// is never re-scanned. A position where no form completes advances by
// one rune, so a candidate nested inside a failed form (say, after an
// unterminated quote) is still found.
func Match(text string) []Candidate {
	var candidates []Candidate

	pos := 0
	for pos < len(text) {
		cand, next, ok := matchAt(text, pos)
		if ok {
			candidates = append(candidates, cand)
			pos = next
			continue
		}
		_, size := utf8.DecodeRuneInString(text[pos:])
		pos += size
	}

	return candidates
}

func matchAt(text string, pos int) (Candidate, int, bool) {
	rest := text[pos:]

	for _, form := range subjectForms {
		loc := form.re.FindStringSubmatchIndex(rest)
		if loc == nil {
			continue
		}

		subject := rest[loc[0]:loc[1]]
		if len(loc) > 2 && loc[2] >= 0 {
			subject = rest[loc[2]:loc[3]]
		}

		sign, runLength, runEnd := scanRun(rest[loc[1]:])
		if runLength < minRunLength || runLength > maxRunLength {
			continue
		}

		cand := Candidate{
			Kind:        form.kind,
			RawSubject:  subject,
			Quoted:      form.quoted,
			StartOffset: pos,
			RunLength:   runLength,
			RunSign:     sign,
		}
		return cand, pos + loc[1] + runEnd, true
	}

	return Candidate{}, 0, false
}

// scanRun reads an optional space/tab gap followed by the maximal run
// of identical '+' or '-' characters. Returns sign, run length, and the
// byte offset just past the run. A missing or mixed run reports length
// 0 or 1 and is rejected by the caller's bounds check.
func scanRun(s string) (sign, length, end int) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i >= len(s) || (s[i] != '+' && s[i] != '-') {
		return 0, 0, 0
	}

	c := s[i]
	j := i
	for j < len(s) && s[j] == c {
		j++
	}

	sign = 1
	if c == '-' {
		sign = -1
	}
	return sign, j - i, j
}
