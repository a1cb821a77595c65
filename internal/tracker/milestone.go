package tracker

type Milestone struct {
	Label         string `json:"label"`
	ThresholdDays int    `json:"thresholdDays"`
	RewardText    string `json:"rewardText"`
}

type MilestoneStatus string

const (
	MilestoneLocked     MilestoneStatus = "locked"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneUnlocked   MilestoneStatus = "unlocked"
)

var Milestones = []Milestone{
	{Label: "First Streak", ThresholdDays: 5, RewardText: "Amazing start! Keep building momentum."},
	{Label: "Consistency Master", ThresholdDays: 15, RewardText: "15 days of consistency, keep it rolling."},
	{Label: "Habit Warrior", ThresholdDays: 30, RewardText: "30 perfect days logged. You're on fire."},
	{Label: "Discipline Champion", ThresholdDays: 50, RewardText: "50-day streak says you're unshakable."},
	{Label: "Transformation Complete", ThresholdDays: 75, RewardText: "75 days of excellence. Nearly there."},
	{Label: "Century Club", ThresholdDays: 100, RewardText: "100 perfect days! A new standard set."},
}

type MilestoneProgress struct {
	Milestone
	Status   MilestoneStatus `json:"status"`
	Progress int             `json:"progress"`
}

// EvaluateMilestone derives status and bar value from the two streaks.
// "In progress" means the longest run reached half the threshold.
func EvaluateMilestone(m Milestone, currentStreak, longestStreak int) MilestoneProgress {
	out := MilestoneProgress{Milestone: m, Status: MilestoneLocked}
	if m.ThresholdDays <= 0 {
		out.Status = MilestoneUnlocked
		out.Progress = 100
		return out
	}
	switch {
	case currentStreak >= m.ThresholdDays:
		out.Status = MilestoneUnlocked
	case 2*longestStreak >= m.ThresholdDays:
		out.Status = MilestoneInProgress
	}
	out.Progress = roundRatio(100*currentStreak, m.ThresholdDays)
	if out.Progress > 100 {
		out.Progress = 100
	}
	return out
}

func EvaluateMilestones(milestones []Milestone, currentStreak, longestStreak int) []MilestoneProgress {
	out := make([]MilestoneProgress, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, EvaluateMilestone(m, currentStreak, longestStreak))
	}
	return out
}
