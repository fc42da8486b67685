package collection

type FetchResponse struct {
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	Data   *Snapshot `json:"data,omitempty"`
}

type UpsertRequest struct {
	Rows []Row `json:"rows" maxItems:"500"`
}

type UpsertResponse struct {
	Status    string      `json:"status"`
	Error     string      `json:"error,omitempty"`
	Processed int         `json:"processed"`
	Stale     int         `json:"stale"`
	Failed    []FailedRow `json:"failed,omitempty"`
}

type FailedRow struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type CoursesRequest struct {
	Courses []string `json:"courses"`
}

type CoursesResponse struct {
	Status  string   `json:"status"`
	Error   string   `json:"error,omitempty"`
	Courses []string `json:"courses,omitempty"`
}

type PreferencesResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Applied bool   `json:"applied"`
}

type StatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
