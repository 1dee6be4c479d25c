package models

// All lists every model for AutoMigrate
func All() []interface{} {
	return []interface{}{
		&User{},
		&Workshop{},
		&Appointment{},
		&Review{},
		&Message{},
		&Notification{},
	}
}
