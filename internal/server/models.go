package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// UpdateScheduleRequest changes the automation policy. Omitted fields
// keep their stored value.
type UpdateScheduleRequest struct {
	Cadence     *string `json:"cadence,omitempty"`
	PublishHour *int    `json:"publish_hour,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// ConnectorTestRequest probes a destination without saving it.
type ConnectorTestRequest struct {
	Type        string            `json:"type"`
	EndpointURL string            `json:"endpoint_url"`
	Username    string            `json:"username,omitempty"`
	AppPassword string            `json:"app_password,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// ConnectorTestResponse reports the probe outcome.
type ConnectorTestResponse struct {
	OK          bool   `json:"ok"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Status      int    `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PreviewResponse returns the retained article body for a preview-only run.
type PreviewResponse struct {
	RunID        string `json:"run_id"`
	Title        string `json:"title"`
	BodyMarkdown string `json:"body_markdown"`
	Summary      string `json:"summary"`
}
