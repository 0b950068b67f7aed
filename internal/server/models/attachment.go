package models

// AttachmentReference is a durable pointer to stored image bytes associated
// with one report. StorageKey is content-addressed, so two references to
// identical bytes share a key and report the same hash and size.
type AttachmentReference struct {
	ID          string
	ReportID    string
	Position    int
	StorageKey  string
	ContentHash string
	Size        int64
	MimeType    string
}
