package domain

import "encoding/json"

// Phase is the lifecycle position of one generation axis (image or audio)
// of a page. A page tracks the two axes independently.
type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseInProgress Phase = "in_progress"
	PhaseReady      Phase = "ready"
	PhaseFailed     Phase = "failed"
)

// AxisState is a tagged variant over {Empty, InProgress, Ready(payload),
// Failed(reason)}. Keeping phase and payload in one value makes the
// impossible flag combinations (in-progress with a payload, failed while
// in-progress) unrepresentable.
type AxisState struct {
	Phase   Phase
	Payload []byte
	Reason  string
}

func (s AxisState) Empty() bool      { return s.Phase == PhaseEmpty || s.Phase == "" }
func (s AxisState) InProgress() bool { return s.Phase == PhaseInProgress }
func (s AxisState) Ready() bool      { return s.Phase == PhaseReady }
func (s AxisState) Failed() bool     { return s.Phase == PhaseFailed }

// MarkInProgress returns the state transitioned to InProgress. Any previous
// payload or failure reason is discarded.
func (s AxisState) MarkInProgress() AxisState {
	return AxisState{Phase: PhaseInProgress}
}

// MarkReady returns the state holding the generated payload.
func (s AxisState) MarkReady(payload []byte) AxisState {
	return AxisState{Phase: PhaseReady, Payload: payload}
}

// MarkFailed returns the terminal failed state carrying the reason shown to
// the user next to the retry affordance.
func (s AxisState) MarkFailed(reason string) AxisState {
	return AxisState{Phase: PhaseFailed, Reason: reason}
}

// Clear returns the axis to Empty so the next trigger regenerates it.
func (s AxisState) Clear() AxisState {
	return AxisState{Phase: PhaseEmpty}
}

type axisStateJSON struct {
	Payload []byte `json:"payload,omitempty"`
}

// MarshalJSON persists only the payload. InProgress and Failed are transient
// UI states; a reload lands on Empty or Ready.
func (s AxisState) MarshalJSON() ([]byte, error) {
	return json.Marshal(axisStateJSON{Payload: s.Payload})
}

func (s *AxisState) UnmarshalJSON(data []byte) error {
	var raw axisStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Payload) == 0 {
		*s = AxisState{Phase: PhaseEmpty}
		return nil
	}
	*s = AxisState{Phase: PhaseReady, Payload: raw.Payload}
	return nil
}
