package models

// All lists every persisted model. Tests and the sqlite dev path migrate with it.
func All() []any {
	return []any{
		&Shop{},
		&Item{},
		&Reservation{},
		&Order{},
		&OrderLine{},
		&OutboxEvent{},
	}
}
