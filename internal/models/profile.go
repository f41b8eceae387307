package models

// UserProfile is the private record stored at users:{uid}. Only the owner
// reads or writes it.
type UserProfile struct {
	UID          string         `json:"id"`
	Username     string         `json:"username"`
	PhoneNum     string         `json:"phoneNum"`
	UsernameKey  string         `json:"usernameKey"`
	PhoneHash    string         `json:"phoneHash"`
	AllTimeSteps int64          `json:"allTimeSteps"`
	LastSync     int64          `json:"lastSync"`
	StepsByDay   map[string]int `json:"stepsByDay"`
	PersonalBest int            `json:"personalBest"`
	Streak       int            `json:"streak"`
}

// PublicProfile is the leaderboard-safe projection stored at
// public_profiles:{uid}. Its username/steps fields mirror UserProfile.
type PublicProfile struct {
	UID          string `json:"id"`
	Username     string `json:"username"`
	Steps        int64  `json:"steps"`
	PersonalBest int    `json:"personalBest"`
	Streak       int    `json:"streak"`
}

type Resp struct {
	OK   bool        `json:"ok"`
	Info interface{} `json:"info"`
}
