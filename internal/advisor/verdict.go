package advisor

import "strings"

// Verdict is the feasibility judgement requested in evaluate mode.
type Verdict string

const (
	VerdictNone              Verdict = ""
	VerdictRecommended       Verdict = "recommended"
	VerdictNeedsModification Verdict = "needs_modification"
	VerdictNotRecommended    Verdict = "not_recommended"
)

// Label is the wording the prompt asks the model to use.
func (v Verdict) Label() string {
	switch v {
	case VerdictRecommended:
		return "Direkomendasikan"
	case VerdictNeedsModification:
		return "Perlu Modifikasi"
	case VerdictNotRecommended:
		return "Tidak Direkomendasikan"
	}
	return ""
}

var verdicts = []Verdict{
	VerdictNotRecommended,
	VerdictNeedsModification,
	VerdictRecommended,
}

// VerdictLabels lists the closed label set in prompt order.
func VerdictLabels() []string {
	return []string{
		VerdictRecommended.Label(),
		VerdictNeedsModification.Label(),
		VerdictNotRecommended.Label(),
	}
}

// ParseVerdict reads the verdict from a completion. A label on the
// "Penilaian:" line wins; otherwise the label appearing first in text is
// used. "Tidak Direkomendasikan" starts before the "Direkomendasikan" it
// contains, so the negative label wins either way. Text without any label
// yields VerdictNone.
func ParseVerdict(text string) Verdict {
	for _, line := range strings.Split(text, "\n") {
		rest, ok := assessmentLine(line)
		if !ok {
			continue
		}
		if v := earliestVerdict(rest); v != VerdictNone {
			return v
		}
	}
	return earliestVerdict(text)
}

// assessmentLine reports whether line is the "Penilaian:" line and returns
// the text after the heading. Markdown emphasis and list markers are ignored.
func assessmentLine(line string) (string, bool) {
	trimmed := strings.TrimLeft(strings.ToLower(strings.TrimSpace(line)), "*#-_> ")
	rest, ok := strings.CutPrefix(trimmed, assessmentHeading)
	return rest, ok
}

const assessmentHeading = "penilaian"

func earliestVerdict(text string) Verdict {
	lower := strings.ToLower(text)
	best, bestAt := VerdictNone, -1
	for _, v := range verdicts {
		label := strings.ToLower(v.Label())
		at := strings.Index(lower, label)
		if at < 0 {
			continue
		}
		if bestAt == -1 || at < bestAt {
			best, bestAt = v, at
		}
	}
	return best
}
