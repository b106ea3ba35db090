package dto

type CreateSourceRequest struct {
	Name     string   `json:"name"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Variants []string `json:"variants"`

	BackoffCapSeconds int `json:"backoff_cap_seconds"`
	FallbackAfter     int `json:"fallback_after"`

	Enabled *bool `json:"enabled"`
}

type UpdateSourceRequest struct {
	Name     *string  `json:"name"`
	Host     *string  `json:"host"`
	Port     *int     `json:"port"`
	Username *string  `json:"username"`
	Password *string  `json:"password"`
	Width    *int     `json:"width"`
	Height   *int     `json:"height"`
	Variants []string `json:"variants"`

	BackoffCapSeconds *int `json:"backoff_cap_seconds"`
	FallbackAfter     *int `json:"fallback_after"`

	Enabled *bool `json:"enabled"`
}

type SourceResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Host      string   `json:"host"`
	Port      int      `json:"port"`
	Username  string   `json:"username,omitempty"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Variants  []string `json:"variants"`

	BackoffCapSeconds int `json:"backoff_cap_seconds,omitempty"`
	FallbackAfter     int `json:"fallback_after,omitempty"`

	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type SourceListResponse struct {
	Sources []SourceResponse `json:"sources"`
}
