package domain

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrEmptyBatch          = errors.New("batch contains no pages")
	ErrBatchNotReady       = errors.New("batch has not finished processing")
	ErrNoArtifact          = errors.New("document has no stored artifact")
	ErrUploadFailed        = errors.New("file upload to storage failed")
)
