package models

import "github.com/google/uuid"

// ensureID assigns a v4 id when the caller left it empty, so inserts behave the
// same on Postgres and the SQLite test driver.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
