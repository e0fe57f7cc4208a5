package match

import (
	"regexp"
	"strings"
)

var (
	terminalStatus = regexp.MustCompile(`\bwon by\b|\bwon the super over\b|\bbeat\b|\bno result\b|\babandoned\b|\bcalled off\b|\bmatch drawn\b|\bmatch complete\b`)
	tiedStatus     = regexp.MustCompile(`\bmatch tied\b|\btied\b`)
	superOverMark  = regexp.MustCompile(`\bsuper overs?\b`)
	breakStatus    = regexp.MustCompile(`\binnings break\b|\bneed \d+ runs?\b|\brequire \d+ runs?\b|\btarget\b`)
	tossStatus     = regexp.MustCompile(`\bwon the toss\b|\bopt(?:ed)? to (?:bat|bowl)\b|\belected to (?:bat|field|bowl)\b`)
)

// Classify maps a snapshot to its stage. It keeps no state between calls, so
// classifying the same snapshot always yields the same result.
func Classify(m MatchContext) Classification {
	status := strings.ToLower(strings.TrimSpace(m.StatusText))
	maxOvers := m.Format.MaxOvers()

	if terminalStatus.MatchString(status) {
		return Classification{Stage: StageCompleted, Reason: "terminal status"}
	}

	limitedOvers := maxOvers > 0
	if superOverMark.MatchString(status) || (limitedOvers && len(m.Innings) > 2) {
		return Classification{Stage: StageSuperOver, Reason: "super over in progress"}
	}
	if tiedStatus.MatchString(status) {
		return Classification{Stage: StageCompleted, Reason: "tied without super over"}
	}

	switch len(m.Innings) {
	case 0:
		return classifyPreMatch(m, status)
	case 1:
		return classifyFirstInnings(m, status, maxOvers)
	default:
		return classifySecondInnings(m, maxOvers)
	}
}

// Finished reports whether status text alone marks the match as over. A tie
// still heading into a super over is not finished.
func Finished(status string) bool {
	status = strings.ToLower(strings.TrimSpace(status))
	if terminalStatus.MatchString(status) {
		return true
	}
	return tiedStatus.MatchString(status) && !superOverMark.MatchString(status)
}

func classifyPreMatch(m MatchContext, status string) Classification {
	if m.Toss != nil && m.Toss.Winner != "" {
		return Classification{Stage: StagePostToss, Reason: "toss recorded"}
	}
	if tossStatus.MatchString(status) {
		return Classification{Stage: StagePostToss, Ambiguous: true, Reason: "toss inferred from status text"}
	}
	return Classification{Stage: StagePreToss, Reason: "no toss result"}
}

func classifyFirstInnings(m MatchContext, status string, maxOvers int) Classification {
	first := m.Innings[0]
	if !first.Started() {
		c := Classification{Stage: StagePostToss, Reason: "first innings not started"}
		if m.Toss == nil {
			c.Ambiguous = true
			c.Reason = "innings listed without toss result"
		}
		return c
	}

	if inningsComplete(first, maxOvers) {
		return Classification{Stage: StageInningsBreak, Reason: "first innings reached its limit"}
	}
	if breakStatus.MatchString(status) {
		return Classification{Stage: StageInningsBreak, Reason: "status reports innings break"}
	}
	return Classification{Stage: StageInnings1Live, Reason: "first innings in progress"}
}

func classifySecondInnings(m MatchContext, maxOvers int) Classification {
	second := m.Innings[1]

	if !second.Started() {
		return Classification{Stage: StageInningsBreak, Reason: "second innings not started"}
	}
	if second.Target == nil {
		return Classification{Stage: StageInningsBreak, Ambiguous: true, Reason: "second innings active without target"}
	}
	if chaseFinished(second, maxOvers) {
		return Classification{Stage: StageCompleted, Ambiguous: true, Reason: "chase finished without result text"}
	}

	c := Classification{Stage: StageChaseLive, Reason: "chase in progress"}
	if !inningsComplete(m.Innings[0], maxOvers) {
		c.Reason = "chase in progress, first innings short of its limit"
	}
	return c
}

func inningsComplete(i InningsState, maxOvers int) bool {
	if i.Wickets >= 10 {
		return true
	}
	return maxOvers > 0 && i.Balls() >= maxOvers*6
}

func chaseFinished(i InningsState, maxOvers int) bool {
	if i.Target != nil && i.Runs >= *i.Target {
		return true
	}
	return inningsComplete(i, maxOvers)
}
