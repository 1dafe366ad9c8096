package journal

import "errors"

var (
	ErrJournalClosed = errors.New("journal is closed")
)
