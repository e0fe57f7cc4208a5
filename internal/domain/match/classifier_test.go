package match

import "testing"

func intPtr(v int) *int { return &v }

func TestClassify(t *testing.T) {
	t.Parallel()

	toss := &Toss{Winner: "Mumbai Indians", Decision: "bowl"}

	cases := []struct {
		name      string
		ctx       MatchContext
		want      Stage
		ambiguous bool
	}{
		{
			name: "preview without toss",
			ctx:  MatchContext{Format: FormatT20, StatusText: "Match starts at Apr 10, 14:00 GMT"},
			want: StagePreToss,
		},
		{
			name: "toss recorded and zero overs",
			ctx: MatchContext{Format: FormatT20, Toss: toss, StatusText: "Mumbai Indians opt to bowl",
				Innings: []InningsState{{BattingTeam: "Chennai Super Kings"}}},
			want: StagePostToss,
		},
		{
			name:      "toss only in status text",
			ctx:       MatchContext{Format: FormatT20, StatusText: "Mumbai Indians won the toss and opt to bowl"},
			want:      StagePostToss,
			ambiguous: true,
		},
		{
			name: "first innings in progress",
			ctx: MatchContext{Format: FormatT20, Toss: toss,
				Innings: []InningsState{{BattingTeam: "CSK", Runs: 88, Wickets: 3, OversCompleted: 11.4}}},
			want: StageInnings1Live,
		},
		{
			name: "first innings all out",
			ctx: MatchContext{Format: FormatT20, Toss: toss, StatusText: "Chennai Super Kings 142 all out",
				Innings: []InningsState{{BattingTeam: "CSK", Runs: 142, Wickets: 10, OversCompleted: 18.2}}},
			want: StageInningsBreak,
		},
		{
			name: "first innings overs exhausted",
			ctx: MatchContext{Format: FormatT20, Toss: toss,
				Innings: []InningsState{{BattingTeam: "CSK", Runs: 186, Wickets: 6, OversCompleted: 20}}},
			want: StageInningsBreak,
		},
		{
			name: "break signalled by status text",
			ctx: MatchContext{Format: FormatT20, Toss: toss, StatusText: "Innings Break",
				Innings: []InningsState{{BattingTeam: "CSK", Runs: 160, Wickets: 5, OversCompleted: 19.5}}},
			want: StageInningsBreak,
		},
		{
			name: "second innings listed but not started",
			ctx: MatchContext{Format: FormatT20, Toss: toss, Innings: []InningsState{
				{BattingTeam: "CSK", Runs: 170, Wickets: 7, OversCompleted: 20},
				{BattingTeam: "MI", Target: intPtr(171)},
			}},
			want: StageInningsBreak,
		},
		{
			name: "chase with target even if first innings looks short",
			ctx: MatchContext{Format: FormatT20, Toss: toss, StatusText: "MI need 60 runs in 42 balls", Innings: []InningsState{
				{BattingTeam: "CSK", Runs: 150, Wickets: 6, OversCompleted: 17.2},
				{BattingTeam: "MI", Runs: 91, Wickets: 2, OversCompleted: 13, Target: intPtr(151)},
			}},
			want: StageChaseLive,
		},
		{
			name: "second innings without target resolves to break",
			ctx: MatchContext{Format: FormatT20, Toss: toss, Innings: []InningsState{
				{BattingTeam: "CSK", Runs: 150, Wickets: 6, OversCompleted: 20},
				{BattingTeam: "MI", Runs: 12, OversCompleted: 1.3},
			}},
			want:      StageInningsBreak,
			ambiguous: true,
		},
		{
			name: "chase reached without result text",
			ctx: MatchContext{Format: FormatT20, Toss: toss, Innings: []InningsState{
				{BattingTeam: "CSK", Runs: 150, Wickets: 6, OversCompleted: 20},
				{BattingTeam: "MI", Runs: 152, Wickets: 4, OversCompleted: 18.1, Target: intPtr(151)},
			}},
			want:      StageCompleted,
			ambiguous: true,
		},
		{
			name: "result text",
			ctx: MatchContext{Format: FormatT20, StatusText: "Mumbai Indians won by 6 wkts", Innings: []InningsState{
				{BattingTeam: "CSK", Runs: 150, Wickets: 6, OversCompleted: 20},
				{BattingTeam: "MI", Runs: 152, Wickets: 4, OversCompleted: 18.1, Target: intPtr(151)},
			}},
			want: StageCompleted,
		},
		{
			name: "won the toss is not a result",
			ctx:  MatchContext{Format: FormatT20, Toss: toss, StatusText: "Mumbai Indians won the toss"},
			want: StagePostToss,
		},
		{
			name: "super over marker",
			ctx:  MatchContext{Format: FormatT20, StatusText: "Match tied - Super Over in progress"},
			want: StageSuperOver,
		},
		{
			name: "third innings in limited overs",
			ctx: MatchContext{Format: FormatT20, Innings: []InningsState{
				{Runs: 160, Wickets: 8, OversCompleted: 20},
				{Runs: 160, Wickets: 9, OversCompleted: 20, Target: intPtr(161)},
				{Runs: 9, Wickets: 1, OversCompleted: 0.4},
			}},
			want: StageSuperOver,
		},
		{
			name: "tie decided by super over",
			ctx:  MatchContext{Format: FormatT20, StatusText: "Match tied (Rajasthan Royals won the Super Over)"},
			want: StageCompleted,
		},
		{
			name: "abandoned",
			ctx:  MatchContext{Format: FormatT20, StatusText: "Match abandoned due to rain"},
			want: StageCompleted,
		},
		{
			name: "eliminator playoff before toss",
			ctx:  MatchContext{Format: FormatT20, StatusText: "Eliminator - Match starts at May 22, 14:00 GMT"},
			want: StagePreToss,
		},
		{
			name: "eliminator playoff first innings",
			ctx: MatchContext{Format: FormatT20, Toss: toss, StatusText: "Eliminator - Rajasthan Royals 72/2 (8 ov)",
				Innings: []InningsState{{BattingTeam: "Rajasthan Royals", Runs: 72, Wickets: 2, OversCompleted: 8}}},
			want: StageInnings1Live,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.ctx)
			if got.Stage != tc.want {
				t.Fatalf("stage=%s want %s (reason %q)", got.Stage, tc.want, got.Reason)
			}
			if got.Ambiguous != tc.ambiguous {
				t.Fatalf("ambiguous=%v want %v (reason %q)", got.Ambiguous, tc.ambiguous, got.Reason)
			}
			if again := Classify(tc.ctx); again != got {
				t.Fatalf("classification not repeatable: %+v vs %+v", got, again)
			}
		})
	}
}

func TestFinished(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"Gujarat Titans won by 5 wkts":                     true,
		"No result due to rain":                            true,
		"Match tied":                                       true,
		"Match tied - Super Over in progress":              false,
		"Match tied (Rajasthan Royals won the Super Over)": true,
		"Eliminator - Match starts at May 22, 14:00 GMT":   false,
		"Mumbai Indians won the toss and opt to bowl":      false,
		"Chennai Super Kings need 40 runs in 24 balls":     false,
	}
	for status, want := range cases {
		if got := Finished(status); got != want {
			t.Fatalf("Finished(%q)=%v want %v", status, got, want)
		}
	}
}

func TestOversToBalls(t *testing.T) {
	t.Parallel()

	cases := map[float64]int{0: 0, 0.4: 4, 6: 36, 12.3: 75, 19.5: 119, 20: 120}
	for overs, want := range cases {
		if got := OversToBalls(overs); got != want {
			t.Fatalf("OversToBalls(%v)=%d want %d", overs, got, want)
		}
	}
}

func TestParseStage(t *testing.T) {
	t.Parallel()

	for _, s := range Stages() {
		got, ok := ParseStage(string(s))
		if !ok || got != s {
			t.Fatalf("ParseStage(%q)=%q,%v", s, got, ok)
		}
	}
	if _, ok := ParseStage("drinks_break"); ok {
		t.Fatalf("unknown stage should not parse")
	}
}
