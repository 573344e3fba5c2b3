package matching

// Request bodies for the matching API

type InteractionDTO struct {
	TargetUserID     string `json:"targetUserId" validate:"required"`
	Type             string `json:"type" validate:"required,oneof=view interest favorite skip"`
	TargetAge        int    `json:"targetAge,omitempty" validate:"omitempty,min=18,max=100"`
	TargetDistrict   string `json:"targetDistrict,omitempty" validate:"omitempty,max=100"`
	TargetEducation  string `json:"targetEducation,omitempty" validate:"omitempty,max=100"`
	TargetOccupation string `json:"targetOccupation,omitempty" validate:"omitempty,max=100"`
}

type FeedbackDTO struct {
	MatchUserID string   `json:"matchUserId" validate:"required"`
	Feedback    string   `json:"feedback" validate:"required,oneof=excellent good average poor"`
	Reasons     []string `json:"reasons,omitempty" validate:"omitempty,max=10,dive,max=200"`
}

type InterestAcceptedDTO struct {
	SenderID string `json:"senderId" validate:"required"`
}

type UpdateMatchStatusDTO struct {
	Status string `json:"status" validate:"required,oneof=active contacted inactive blocked"`
}

type BatchMutualMatchDTO struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,max=500,dive,required"`
}

type InterestAcceptedResponse struct {
	Matched bool `json:"matched"`
}
