package core

// BonusBreakdown is the result of the weekly bonus computation. It is a
// pure projection of chore count and settings; computing it never
// mutates the ledger, so display layers may recompute it on every
// refresh.
type BonusBreakdown struct {
	ChoresCompleted int   `json:"choresCompleted"`
	TasksPerWeek    int   `json:"tasksPerWeek"`
	ExtraTasks      int   `json:"extraTasks"`
	BonusCents      Cents `json:"bonusCents"`
	AllowanceCents  Cents `json:"allowanceCents"`
	TotalCents      Cents `json:"totalCents"`
}

// ComputeWeeklyBonus derives the weekly payout from the number of
// completed chores and the account settings:
//
//	extra = clamp(choresCompleted - tasksPerWeek, 0, maximumExtraTasks)
//	bonus = extra * bonusPerExtraTask
//	total = weeklyAllowance + bonus
func ComputeWeeklyBonus(choresCompleted int, s AllowanceSettings) BonusBreakdown {
	extra := clamp(choresCompleted-s.TasksPerWeek, 0, s.MaximumExtraTasks)
	bonus := Cents(extra) * s.BonusPerExtraTaskCents
	return BonusBreakdown{
		ChoresCompleted: choresCompleted,
		TasksPerWeek:    s.TasksPerWeek,
		ExtraTasks:      extra,
		BonusCents:      bonus,
		AllowanceCents:  s.WeeklyAllowanceCents,
		TotalCents:      s.WeeklyAllowanceCents + bonus,
	}
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
