package models

import "strings"

// Grade tokens used on the default scale
const (
	GradeOutstanding = "O"
	GradeAPlus       = "A+"
	GradeA           = "A"
	GradeBPlus       = "B+"
	GradeB           = "B"
	GradeC           = "C"
	GradeFail        = "F"
)

// DefaultGradeScale lists the accepted grade tokens, best first
var DefaultGradeScale = []string{
	GradeOutstanding,
	GradeAPlus,
	GradeA,
	GradeBPlus,
	GradeB,
	GradeC,
	GradeFail,
}

// GradeScale is the set of grade tokens a completion may assign
type GradeScale struct {
	tokens  map[string]struct{}
	ordered []string
	failing string
}

// NewGradeScale builds a scale from tokens; the failing grade is always accepted
func NewGradeScale(tokens []string, failing string) GradeScale {
	failing = NormalizeGrade(failing)
	if failing == "" {
		failing = GradeFail
	}
	if len(tokens) == 0 {
		tokens = DefaultGradeScale
	}

	scale := GradeScale{tokens: make(map[string]struct{}, len(tokens)+1), failing: failing}
	for _, t := range tokens {
		t = NormalizeGrade(t)
		if t == "" {
			continue
		}
		if _, dup := scale.tokens[t]; dup {
			continue
		}
		scale.tokens[t] = struct{}{}
		scale.ordered = append(scale.ordered, t)
	}
	if _, ok := scale.tokens[failing]; !ok {
		scale.tokens[failing] = struct{}{}
		scale.ordered = append(scale.ordered, failing)
	}
	return scale
}

// Accepts reports whether grade is a token on this scale
func (g GradeScale) Accepts(grade string) bool {
	_, ok := g.tokens[NormalizeGrade(grade)]
	return ok
}

// IsFailing reports whether grade is the failing token
func (g GradeScale) IsFailing(grade string) bool {
	return NormalizeGrade(grade) == g.failing
}

// Failing returns the failing token
func (g GradeScale) Failing() string {
	return g.failing
}

// Tokens returns the accepted tokens in configuration order
func (g GradeScale) Tokens() []string {
	out := make([]string, len(g.ordered))
	copy(out, g.ordered)
	return out
}

// NormalizeGrade trims and upper-cases a grade token
func NormalizeGrade(grade string) string {
	return strings.ToUpper(strings.TrimSpace(grade))
}
