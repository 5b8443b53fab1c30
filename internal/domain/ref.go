package domain

// UserRef is a reference to a user that may or may not be populated,
// depending on the query that produced it. Bare ids come from plain reads;
// populated refs come from joins against the users table. All read
// boundaries normalize through this type instead of branching ad hoc.
type UserRef struct {
	ID    string
	Name  string
	Email string

	populated bool
}

// RefFromID builds an unpopulated reference.
func RefFromID(id string) UserRef {
	return UserRef{ID: id}
}

// RefFromUser builds a populated reference carrying display fields.
func RefFromUser(id, name, email string) UserRef {
	return UserRef{ID: id, Name: name, Email: email, populated: true}
}

// Populated reports whether name/email were loaded for this reference.
func (r UserRef) Populated() bool {
	return r.populated
}

// DisplayName returns a human-readable label for the referenced user.
// Unpopulated refs fall back to the placeholder used by the UI.
func (r UserRef) DisplayName() string {
	if r.populated && r.Name != "" {
		return r.Name
	}
	return "Unknown"
}

// Label formats the reference as "Name (email)" when populated, matching
// the notification body format.
func (r UserRef) Label() string {
	if !r.populated {
		return "Unknown"
	}
	return r.Name + " (" + r.Email + ")"
}
