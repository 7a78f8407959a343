package quiz

import "strings"

// All is the target sentinel matching every stream or division.
const All = "ALL"

// TargetSet is a resolved target specifier.
type TargetSet struct {
	names []string
	all   bool
}

// ParseTargets splits a comma-separated specifier. A blank specifier means ALL.
func ParseTargets(list string) TargetSet {
	var ts TargetSet
	for _, part := range strings.Split(list, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		if strings.EqualFold(p, All) {
			ts.all = true
			continue
		}
		ts.names = append(ts.names, p)
	}
	if len(ts.names) == 0 {
		ts.all = true
	}
	return ts
}

func (t TargetSet) IncludesAll() bool { return t.all }

func (t TargetSet) Names() []string { return append([]string(nil), t.names...) }

// Matches reports whether v is targeted. Blank v only matches ALL.
func (t TargetSet) Matches(v string) bool {
	if t.all {
		return true
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, n := range t.names {
		if strings.EqualFold(n, v) {
			return true
		}
	}
	return false
}

// String renders the canonical specifier stored with a quiz.
func (t TargetSet) String() string {
	if t.all {
		return All
	}
	return strings.Join(t.names, ",")
}

// Eligible reports whether the student is in both the stream and division targets.
func Eligible(s Student, q Quiz) bool {
	return ParseTargets(q.TargetStream).Matches(s.Stream) &&
		ParseTargets(q.TargetDivisions).Matches(s.Division)
}

// StreamAbbr shortens a stream name for teacher result listings.
func StreamAbbr(stream string) string {
	s := strings.ToLower(strings.TrimSpace(stream))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "computer engg"):
		return "CE"
	case s == "ecs":
		return "ECS"
	case strings.Contains(s, "mech"):
		return "MECH"
	case strings.Contains(s, "comp sci"):
		return "CSE"
	default:
		return strings.ToUpper(s)
	}
}
