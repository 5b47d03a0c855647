package model

// LinkKind classifies a link found in a formatted citation
type LinkKind string

const (
	LinkKindDOI LinkKind = "doi" // Resolves through doi.org
	LinkKindURL LinkKind = "url" // Any other web link
)

// CitationLink is a link found in a formatted citation
type CitationLink struct {
	URL  string   `json:"url"`
	Host string   `json:"host"`
	Text string   `json:"text,omitempty"`
	Kind LinkKind `json:"kind"`
}

// Citation is a formatted citation reduced to plain text
type Citation struct {
	Text  string         `json:"text"`
	Links []CitationLink `json:"links,omitempty"`
}
