package match

type Stage string

const (
	StagePreToss      Stage = "pre_toss"
	StagePostToss     Stage = "post_toss"
	StageInnings1Live Stage = "innings_1_live"
	StageInningsBreak Stage = "innings_break"
	StageChaseLive    Stage = "chase_live"
	StageSuperOver    Stage = "super_over"
	StageCompleted    Stage = "completed"
)

var allStages = []Stage{
	StagePreToss,
	StagePostToss,
	StageInnings1Live,
	StageInningsBreak,
	StageChaseLive,
	StageSuperOver,
	StageCompleted,
}

func Stages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

func ParseStage(raw string) (Stage, bool) {
	for _, s := range allStages {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Live reports whether balls are currently being bowled.
func (s Stage) Live() bool {
	return s == StageInnings1Live || s == StageChaseLive || s == StageSuperOver
}

// PreMatch reports whether no innings has started.
func (s Stage) PreMatch() bool {
	return s == StagePreToss || s == StagePostToss
}

// Classification is the classifier output. Ambiguous marks snapshots that
// only resolved through a tie-break and should be logged.
type Classification struct {
	Stage     Stage  `json:"stage"`
	Ambiguous bool   `json:"ambiguous"`
	Reason    string `json:"reason"`
}
