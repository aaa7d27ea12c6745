package models

// Family groups guardians and children.
type Family struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Guardian is an adult family member who registers children and volunteers.
type Guardian struct {
	ID       string `db:"id" json:"id"`
	FamilyID string `db:"family_id" json:"familyId"`
	FullName string `db:"full_name" json:"fullName"`
}

// Child is a student registered into classes.
type Child struct {
	ID       string `db:"id" json:"id"`
	FamilyID string `db:"family_id" json:"familyId"`
	FullName string `db:"full_name" json:"fullName"`
}
