package domain

type Response struct {
	Template    string `json:"template"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

type Timer struct {
	Name     string `json:"name"`
	Message  string `json:"message"`
	Interval int    `json:"interval"`
	Lines    int    `json:"lines"`
}
