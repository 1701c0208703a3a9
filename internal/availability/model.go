package availability

import (
	"time"

	"github.com/google/uuid"
)

type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Booked    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SlotHandle identifies a claimed slot so the claim can be released later.
type SlotHandle struct {
	SlotID    uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
}

func (s *Slot) Handle() SlotHandle {
	return SlotHandle{
		SlotID:    s.ID,
		DoctorID:  s.DoctorID,
		StartTime: s.StartTime,
	}
}
