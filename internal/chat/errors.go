package chat

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName        = errors.New("name must not be empty")
	ErrNameTooLong      = errors.New("name is too long")
	ErrEmptyContent     = errors.New("message must not be empty")
	ErrInvalidSender    = errors.New("sender must be client or admin")
	ErrContentTooLong   = errors.New("message is too long")
	ErrSessionNotFound  = errors.New("chat not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrUnsupportedMedia = errors.New("only video files can be uploaded")
	ErrTooLarge         = errors.New("file is too large")
)

// UploadError is returned when the blob store rejects an attachment. No
// message row exists for it.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
