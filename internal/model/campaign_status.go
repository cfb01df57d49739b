package model

// CampaignStatus 活动状态，由链上标志实时推导，不持久化
type CampaignStatus string

const (
	CampaignStatusActive            CampaignStatus = "active"               // 进行中
	CampaignStatusGoalReached       CampaignStatus = "goal-reached"         // 进行中且已达标
	CampaignStatusExpiredGoalMet    CampaignStatus = "expired-goal-met"     // 已结束且达标
	CampaignStatusExpiredGoalNotMet CampaignStatus = "expired-goal-not-met" // 已结束未达标
	CampaignStatusWithdrawn         CampaignStatus = "withdrawn"            // 已提现
)

// StatusInput 状态推导所需的四个标志
type StatusInput struct {
	Withdrawn      bool
	IsExpired      bool
	IsActive       bool
	HasReachedGoal bool
}

// ComputeStatus 推导活动状态，withdrawn 优先级最高
func ComputeStatus(in StatusInput) CampaignStatus {
	if in.Withdrawn {
		return CampaignStatusWithdrawn
	}
	if !in.IsExpired && in.IsActive {
		if in.HasReachedGoal {
			return CampaignStatusGoalReached
		}
		return CampaignStatusActive
	}
	if in.HasReachedGoal {
		return CampaignStatusExpiredGoalMet
	}
	return CampaignStatusExpiredGoalNotMet
}

// DonationStatus 捐赠视角下的活动状态
type DonationStatus string

const (
	DonationStatusActive    DonationStatus = "active"
	DonationStatusEnded     DonationStatus = "ended"
	DonationStatusRefunding DonationStatus = "refunding"
	DonationStatusWithdrawn DonationStatus = "withdrawn"
)

// DonationStatusOf 计算捐赠者看到的活动状态
func DonationStatusOf(c *CampaignRecord) DonationStatus {
	if c.IsExpired {
		if c.HasReachedGoal || !c.GoalBased {
			return DonationStatusEnded
		}
		return DonationStatusRefunding
	}
	if c.Withdrawn {
		return DonationStatusWithdrawn
	}
	return DonationStatusActive
}
