package memory

import (
	"bankcore/internal/repository"
)

var _ repository.LedgerStore = (*LedgerStore)(nil)
