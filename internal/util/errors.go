package util

import "errors"

var (
	ErrEmptyInput        = errors.New("input is empty")
	ErrUndecodable       = errors.New("input is not valid UTF-8 or ISO-8859-1 text")
	ErrNoRows            = errors.New("no data rows")
	ErrImportFailed      = errors.New("import failed")
	ErrImportInProgress  = errors.New("another import is in progress")
	ErrMissingCSV        = errors.New("archive contains no CSV file")
	ErrUnsafeArchivePath = errors.New("archive entry escapes extraction directory")
	ErrUnsupportedFile   = errors.New("unsupported import file type")
	ErrCatalogCorrupt    = errors.New("catalog data is corrupt")
	ErrBlobNotFound      = errors.New("blob not found")
	ErrInvalidConfig     = errors.New("invalid quiz configuration")
	ErrNoQuestions       = errors.New("no questions match the configuration")
	ErrSessionNotFound   = errors.New("no active quiz session")
	ErrInvalidTransition = errors.New("operation not allowed in current session state")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrInvalidChoice     = errors.New("choice index out of range")
	ErrInvalidIssueType  = errors.New("invalid issue type")
)
