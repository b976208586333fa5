package model

type Appointment struct {
	ID          string  `json:"_id"`
	UserID      string  `json:"userId"`
	DoctorID    string  `json:"docId"`
	SlotDate    string  `json:"slotDate"`
	SlotTime    string  `json:"slotTime"`
	Amount      float64 `json:"amount"`
	Cancelled   bool    `json:"cancelled"`
	Payment     bool    `json:"payment"`
	IsCompleted bool    `json:"isCompleted"`
	Doctor      Doctor  `json:"docData"`
}

func (a Appointment) Status() string {
	switch {
	case a.Cancelled:
		return "cancelled"
	case a.IsCompleted:
		return "completed"
	case a.Payment:
		return "paid"
	default:
		return "booked"
	}
}
