package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the caller did not provide one. Rows get
// their ids in Go so the same models migrate on both postgres and sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
