package model

// Layer1Settings configures the account-heuristics layer.
type Layer1Settings struct {
	Enabled        bool   `json:"enabled"`
	AccountAgeDays int    `json:"accountAgeDays"`
	KarmaThreshold int    `json:"karmaThreshold"`
	Action         Action `json:"action"`
	Message        string `json:"message"`
}

// Layer2Settings configures the external moderation-classifier layer.
type Layer2Settings struct {
	Enabled    bool     `json:"enabled"`
	APIKey     string   `json:"apiKey"`
	Categories []string `json:"categories"`
	Threshold  float64  `json:"threshold"`
	Action     Action   `json:"action"`
	Message    string   `json:"message"`
}

// Layer3Settings configures the rule-engine + LLM-analyzer layer.
type Layer3Settings struct {
	Enabled             bool    `json:"enabled"`
	RulesJSON           string  `json:"rulesJson"`
	PrimaryProvider     string  `json:"primaryProvider"`
	FallbackProvider    string  `json:"fallbackProvider"`
	OpenAIAPIKey        string  `json:"openaiApiKey"`
	GeminiAPIKey        string  `json:"geminiApiKey"`
	DailyBudgetUSD      float64 `json:"dailyBudgetUsd"`
	MonthlyBudgetUSD    float64 `json:"monthlyBudgetUsd"`
	BudgetAlertsEnabled bool    `json:"budgetAlertsEnabled"`
}

// Templates holds reply text used by REMOVE/COMMENT effectors.
type Templates struct {
	RemoveTemplate  string `json:"removeTemplate"`
	CommentTemplate string `json:"commentTemplate"`
}

// NotificationRecipient selects who receives budget/digest notifications.
type NotificationRecipient string

const (
	RecipientAll      NotificationRecipient = "all"
	RecipientSpecific NotificationRecipient = "specific"
)

// Notifications configures the digest and real-time alert sink.
type Notifications struct {
	Recipient          NotificationRecipient `json:"recipient"`
	Usernames          []string              `json:"usernames"`
	DailyDigestEnabled bool                  `json:"dailyDigestEnabled"`
	DailyDigestTime    string                `json:"dailyDigestTime"`
	RealtimeEnabled    bool                  `json:"realtimeEnabled"`
}

// DryRun configures whether the effector logs instead of acting.
type DryRun struct {
	Enabled    bool `json:"enabled"`
	LogDetails bool `json:"logDetails"`
}

// Settings is the strongly-typed, per-installation configuration view
// consumed by the cascade. It is read-only during a cascade invocation and
// originates from the host platform, not from the process environment.
type Settings struct {
	Subreddit            string         `json:"subreddit"`
	WhitelistedUsernames []string       `json:"whitelistedUsernames"`
	BotUsername          string         `json:"botUsername"`
	Layer1               Layer1Settings `json:"layer1"`
	Layer2               Layer2Settings `json:"layer2"`
	Layer3               Layer3Settings `json:"layer3"`
	Templates            Templates      `json:"templates"`
	Notifications        Notifications  `json:"notifications"`
	CacheVersion         string         `json:"cacheVersion"`
	DryRun               DryRun         `json:"dryRun"`
}

// IsWhitelisted reports whether username is exempt from all cascade layers.
func (s Settings) IsWhitelisted(username string) bool {
	if username == "" {
		return false
	}
	if s.BotUsername != "" && username == s.BotUsername {
		return true
	}
	for _, u := range s.WhitelistedUsernames {
		if u == username {
			return true
		}
	}
	return false
}
