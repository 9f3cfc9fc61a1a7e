package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotgrid"
)

type Step int

const (
	StepNone Step = iota
	StepCollectingName
	StepCollectingPhone
	StepSelectingDay
	StepSelectingSlot
	StepCollectingEmail
	StepConfirming
	StepTerminal
)

var stepNames = map[Step]string{
	StepNone:            "none",
	StepCollectingName:  "collecting_name",
	StepCollectingPhone: "collecting_phone",
	StepSelectingDay:    "selecting_day",
	StepSelectingSlot:   "selecting_slot",
	StepCollectingEmail: "collecting_email",
	StepConfirming:      "confirming",
	StepTerminal:        "terminal",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type InputKind string

const (
	InputStart   InputKind = "start"
	InputText    InputKind = "text"
	InputDay     InputKind = "day"
	InputSlot    InputKind = "slot"
	InputConfirm InputKind = "confirm"
	InputBack    InputKind = "back"
	InputAbort   InputKind = "abort"
)

func ParseInputKind(raw string) (InputKind, error) {
	k := InputKind(strings.ToLower(strings.TrimSpace(raw)))
	switch k {
	case InputStart, InputText, InputDay, InputSlot, InputConfirm, InputBack, InputAbort:
		return k, nil
	}
	return "", fmt.Errorf("unknown input kind %q", raw)
}

// Input is one user message, already classified by the transport.
type Input struct {
	Kind InputKind
	Text string
}

// Draft is the per-user booking in progress.
type Draft struct {
	ID     string
	UserID string
	Step   Step
	Name   string
	Phone  string
	Email  string
	Day    time.Time
	Slot   slotgrid.Slot
	// HeldSlot is the slot id provisionally reserved for this user, if any.
	HeldSlot string
}

func (d *Draft) owner() string {
	if d.UserID != "" {
		return d.UserID
	}
	return d.ID
}

type ConfirmedBooking struct {
	EventID string
	Name    string
	Phone   string
	Email   string
	Slot    slotgrid.Slot
}

// Reply is what the transport renders after an input: the current step, its
// prompt and options, and the recoverable error that kept or moved the draft.
type Reply struct {
	Step    Step
	Prompt  string
	Options []string
	Err     *Error
	Booking *ConfirmedBooking
}
