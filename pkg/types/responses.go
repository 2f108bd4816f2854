package types

// PreflightCheckResponse is returned by the free robots.txt preflight endpoint
type PreflightCheckResponse struct {
	Success bool              `json:"success"`
	Results []PreflightResult `json:"results"`
}

// PreflightResult wraps the per-URL preflight verdict
type PreflightResult struct {
	Data PreflightData `json:"data"`
}

// PreflightData reports whether robots.txt allows fetching a URL
type PreflightData struct {
	URL        string   `json:"url"`
	Allowed    bool     `json:"allowed"`
	Message    string   `json:"message,omitempty"`
	CrawlDelay *float64 `json:"crawlDelay,omitempty"`
}

// Allowed reports the verdict of the first result, false when there is none.
func (r *PreflightCheckResponse) Allowed() (bool, string) {
	if r == nil || len(r.Results) == 0 {
		return false, ""
	}
	return r.Results[0].Data.Allowed, r.Results[0].Data.Message
}

// PaidEndpointResponse is the shape shared by every paid extraction endpoint.
// Results are kept loosely typed since each endpoint returns its own fields
// (metadata, content, links).
type PaidEndpointResponse struct {
	Success bool             `json:"success"`
	Results []map[string]any `json:"results"`
	Payment *PaymentInfo     `json:"payment,omitempty"`
}
