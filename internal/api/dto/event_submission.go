package dto

// EventSubmission is the ingestion payload from the capture layer.
type EventSubmission struct {
	IP       string            `json:"ip"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
