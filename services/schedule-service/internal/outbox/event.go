package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventAppointmentBooked = "schedule.appointment.booked.v1"
	EventSlotsSaved        = "schedule.slots.saved.v1"
)
