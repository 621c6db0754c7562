package models

// RankedResult is a single related note with its similarity to the source.
type RankedResult struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Preview    string  `json:"preview"`
	Similarity float64 `json:"similarity"`
}

// RelatedResponse is the response for a related-notes request.
// Results is never nil so an empty match serializes as [] rather than null.
type RelatedResponse struct {
	Results   []*RankedResult `json:"results"`
	QueryTime int64           `json:"query_time_ms"`
}

// EmbedResponse carries notes back with their embeddings. Notes whose
// embedding failed are returned without one.
type EmbedResponse struct {
	Notes    []ContentItem `json:"notes"`
	Embedded int           `json:"embedded"`
	Failed   int           `json:"failed"`
}

// NoteList is a page of stored notes.
type NoteList struct {
	Notes []*ContentItem `json:"notes"`
	Total int64          `json:"total"`
}

// StatusResponse reports the size of the note pool and cache.
type StatusResponse struct {
	Notes        int64         `json:"notes"`
	CacheEntries int           `json:"cache_entries"`
	Config       *StatusConfig `json:"config,omitempty"`
}

// StatusConfig is the subset of configuration shown by status.
type StatusConfig struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	DefaultK   int    `json:"default_k"`
}
