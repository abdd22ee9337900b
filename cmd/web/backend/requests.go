package server

type MailSentRequest struct {
	Title      string         `json:"title"`
	PostedData map[string]any `json:"posted_data"`
}

type SettingsRequest struct {
	CiviCRMURL string `json:"civicrm_url"`
	APIKey     string `json:"api_key"`
	SiteKey    string `json:"site_key"`
}

type FormRequest struct {
	Enabled      bool   `json:"enabled"`
	Action       string `json:"action"`
	FieldMapping string `json:"field_mapping"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
