package model

// Plan holds the subscription limits. Zero numeric limits mean unlimited.
type Plan struct {
	ID                 string       `json:"id"                   bson:"_id"`
	Name               string       `json:"name"                 bson:"name"`
	GenerationQuota    int          `json:"generation_quota"     bson:"generationQuota"`
	ImageQuota         int          `json:"image_quota"          bson:"imageQuota"`
	DailyScheduleLimit int          `json:"daily_schedule_limit" bson:"dailyScheduleLimit"`
	Features           PlanFeatures `json:"features"             bson:"features"`
}

type PlanFeatures struct {
	Autopost  bool `json:"autopost"  bson:"autopost"`
	Carousel  bool `json:"carousel"  bson:"carousel"`
	Analytics bool `json:"analytics" bson:"analytics"`
}
