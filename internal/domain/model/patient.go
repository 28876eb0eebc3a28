package model

// Patient is an entry in the static patient registry.
type Patient struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DeviceID string `json:"deviceId"`
}

// DailyAggregate counts correct and wrong events for one local calendar day.
type DailyAggregate struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Correct int    `json:"correct"`
	Wrong   int    `json:"wrong"`
}

// TechniqueIssues are overlapping tallies; one event may count in several.
type TechniqueIssues struct {
	NotShaken         int `json:"notShaken"`
	WeakInhale        int `json:"weakInhale"`
	OrientationIssues int `json:"orientationIssues"`
}
