// Package models defines the persistent and transient record types shared by
// the store, repository, resolver, queue, and HTTP layers.
package models

import "time"

// AlertType enumerates the event kinds a parent Alert can be configured for.
type AlertType string

const (
	AlertTypeFollow     AlertType = "follow"
	AlertTypeSubscribe  AlertType = "subscribe"
	AlertTypeCheer      AlertType = "cheer"
	AlertTypeRaid       AlertType = "raid"
	AlertTypeDonation   AlertType = "donation"
	AlertTypeCustom     AlertType = "custom"
)

// ConditionType enumerates the kinds of condition a Variation can evaluate.
type ConditionType string

const (
	ConditionTier   ConditionType = "tier"
	ConditionAmount ConditionType = "amount"
	ConditionCustom ConditionType = "custom"
)

// Alert is the parent configuration row for one event kind.
type Alert struct {
	ID              string     `json:"id"`
	Type            AlertType  `json:"type"`
	Name            string     `json:"name"`
	Enabled         bool       `json:"enabled"`
	MessageTemplate string     `json:"messageTemplate"`
	DurationMs      int        `json:"durationMs"`
	AnimationIn     string     `json:"animationIn"`
	AnimationOut    string     `json:"animationOut"`
	SoundPath       string     `json:"soundPath"`
	SoundVolume     float64    `json:"soundVolume"`
	ImagePath       string     `json:"imagePath"`
	FontFamily      string     `json:"fontFamily"`
	FontSize        int        `json:"fontSize"`
	TextColor       string     `json:"textColor"`
	BackgroundColor *string    `json:"backgroundColor"`
	CustomCSS       string     `json:"customCss"`
	MinAmount       *float64   `json:"minAmount"`
	TTSEnabled      bool       `json:"ttsEnabled"`
	TTSVoice        string     `json:"ttsVoice"`
	TTSRate         float64    `json:"ttsRate"`
	TTSPitch        float64    `json:"ttsPitch"`
	TTSVolume       float64    `json:"ttsVolume"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Variations      []Variation `json:"variations,omitempty"`
}

// Variation is a conditional override attached to a parent Alert.
type Variation struct {
	ID              string    `json:"id"`
	ParentAlertID   string    `json:"parentAlertId"`
	Name            string    `json:"name"`
	ConditionType   ConditionType `json:"conditionType"`
	ConditionValue  string    `json:"conditionValue"`
	Priority        int       `json:"priority"`
	Enabled         bool      `json:"enabled"`
	MessageTemplate *string   `json:"messageTemplate"`
	SoundPath       *string   `json:"soundPath"`
	SoundVolume     *float64  `json:"soundVolume"`
	ImagePath       *string   `json:"imagePath"`
	AnimationIn     *string   `json:"animationIn"`
	AnimationOut    *string   `json:"animationOut"`
	CustomCSS       *string   `json:"customCss"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Template is a saved, named AlertSpec snapshot.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Spec        string    `json:"spec"` // serialized AlertSpec blob
	IsBuiltin   bool      `json:"isBuiltin"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Setting is an opaque key/value row; callers serialize non-string data.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventLog is an audit record of an event reaching the server.
type EventLog struct {
	ID          string            `json:"id"`
	Platform    string            `json:"platform"`
	EventType   string            `json:"eventType"`
	Username    string            `json:"username"`
	DisplayName string            `json:"displayName"`
	Amount      *float64          `json:"amount"`
	Message     *string           `json:"message"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	AlertFired  bool              `json:"alertFired"`
	Timestamp   time.Time         `json:"timestamp"`
}

// EventLogFilter composes AND-ed query parameters for EventLog.List.
type EventLogFilter struct {
	EventType      string
	Platform       string
	AlertFiredOnly bool
	Search         string // case-sensitive substring over username/displayName/message
	Limit          int
}

// AlertSpec is the merged {parent ⊕ variation} record handed to overlays.
type AlertSpec struct {
	AlertConfigID   string  `json:"alertConfigId"`
	Type            AlertType `json:"type"`
	MessageTemplate string  `json:"messageTemplate"`
	DurationMs      int     `json:"durationMs"`
	AnimationIn     string  `json:"animationIn"`
	AnimationOut    string  `json:"animationOut"`
	SoundPath       string  `json:"soundPath"`
	SoundVolume     float64 `json:"soundVolume"`
	ImagePath       string  `json:"imagePath"`
	FontFamily      string  `json:"fontFamily"`
	FontSize        int     `json:"fontSize"`
	TextColor       string  `json:"textColor"`
	BackgroundColor *string `json:"backgroundColor"`
	CustomCSS       string  `json:"customCss"`
	TTSEnabled      bool    `json:"ttsEnabled"`
	TTSVoice        string  `json:"ttsVoice"`
	TTSRate         float64 `json:"ttsRate"`
	TTSPitch        float64 `json:"ttsPitch"`
	TTSVolume       float64 `json:"ttsVolume"`
	VariationID     *string `json:"_variationId,omitempty"`
	VariationName   *string `json:"_variationName,omitempty"`
}

// Facts is the dynamic-shape event payload submitted to the Rule Resolver.
// Known keys are typed fields; anything else the caller sends rides along
// as opaque JSON in Extra so the Hub and HTTP boundary stay generic while
// the Resolver keeps strong typing over the fields it actually evaluates.
type Facts struct {
	Username    string
	DisplayName string
	Amount      *float64
	Tier        string
	Message     string
	CustomValue string
	Extra       map[string]any
}

// AlertInstance is a transient, resolved alert enqueued for playback. It is
// never persisted; its lifetime is bounded by the Alert Queue.
type AlertInstance struct {
	ID            string    `json:"id"`
	AlertConfigID string    `json:"alertConfigId"`
	Type          AlertType `json:"type"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"displayName"`
	Amount        *float64  `json:"amount"`
	Message       string    `json:"message"`
	Config        AlertSpec `json:"config"`
	Timestamp     time.Time `json:"timestamp"`
}
