package model

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// DateLayout is the wire and display format of a birth date.
const DateLayout = "2006-01-02"

type UserProfile struct {
	ID      string  `json:"_id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address Address `json:"address"`
	Gender  Gender  `json:"gender"`
	DOB     string  `json:"dob"`
	Image   string  `json:"image"`
}
