package clinical

import "time"

// Record is the document-store side of an appointment: free-form
// clinical material keyed by the relational appointment id. At most one
// record exists per appointment; notes and prescriptions are
// append-only. Ids are stored as their string form, the cross-store
// reference is procedural, not a foreign key.
type Record struct {
	ID            string         `bson:"_id,omitempty" json:"id"`
	PatientID     string         `bson:"patient_id" json:"patient_id"`
	AppointmentID string         `bson:"appointment_id" json:"appointment_id"`
	Notes         []Note         `bson:"notes" json:"notes"`
	Prescriptions []Prescription `bson:"prescriptions" json:"prescriptions"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
}

type Note struct {
	AuthorDoctorID string    `bson:"author_doctor_id" json:"author_doctor_id"`
	Text           string    `bson:"text" json:"text"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

type Prescription struct {
	Medication string    `bson:"medication" json:"medication"`
	Dosage     string    `bson:"dosage" json:"dosage"`
	Frequency  string    `bson:"frequency" json:"frequency"`
	Duration   string    `bson:"duration" json:"duration"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
