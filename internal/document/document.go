package document

// Page is the extracted text of one page of a source document.
type Page struct {
	Number int    // 1-based page number
	Text   string // Raw extracted text, line breaks preserved
}

// Section is a titled, contiguous span of document text.
type Section struct {
	Title string // Detected header line, trimmed
	Text  string // Body text with original line breaks
	Page  int    // Page on which the header was found
}

// Descriptor identifies one input document of a run.
type Descriptor struct {
	Name string // File name as listed in the scenario
	Path string // Resolved location on disk
}
