package dto

// WeeklyQuery selects the ISO week containing Date. An empty date means the current week.
type WeeklyQuery struct {
	Date string `form:"date" json:"date" validate:"omitempty,iso_date"`
}

// MonthlyQuery selects a calendar month. Zero values mean the current month.
type MonthlyQuery struct {
	Year  int `form:"year" json:"year" validate:"omitempty,min=1970,max=9999"`
	Month int `form:"month" json:"month"`
}

// HeatmapQuery selects a calendar year. Zero means the current year.
type HeatmapQuery struct {
	Year int `form:"year" json:"year" validate:"omitempty,min=1970,max=9999"`
}

// HistoryQuery bounds a check-in history listing
type HistoryQuery struct {
	From  string `form:"from" json:"from" validate:"omitempty,iso_date"`
	To    string `form:"to" json:"to" validate:"omitempty,iso_date"`
	Limit int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=1000"`
}

// ActivityQuery filters the activity log
type ActivityQuery struct {
	Action string `form:"action" json:"action"`
	Since  string `form:"since" json:"since" validate:"omitempty,iso_date"`
	Limit  int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=500"`
}
