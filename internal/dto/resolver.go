package dto

import "time"

// GenerateAssignmentsRequest triggers a resolver run for a weekly schedule.
// Force supersedes a prior run on an already-assigned schedule. IncludeLate
// overrides the configured late-submission policy for this run when set.
type GenerateAssignmentsRequest struct {
	ScheduleID  string `json:"scheduleId" validate:"required"`
	Force       bool   `json:"force"`
	IncludeLate *bool  `json:"includeLate"`
}

// AlgorithmStepReport describes what one resolver step did, for auditability.
type AlgorithmStepReport struct {
	Step             int    `json:"step"`
	Name             string `json:"name"`
	DriversProcessed int    `json:"driversProcessed"`
	SlotsExcluded    int    `json:"slotsExcluded"`
	SlotsResolved    int    `json:"slotsResolved"`
}

// DayAssignmentView is one resolved day in the response payload.
type DayAssignmentView struct {
	Date               time.Time `json:"date"`
	Weekday            int       `json:"weekday"`
	DriverFamilyID     string    `json:"driverFamilyId"`
	PassengerFamilyIDs []string  `json:"passengerFamilyIds"`
	PassengersUnseated []string  `json:"passengersUnseated,omitempty"`
}

// GenerateAssignmentsResponse is the resolver's output contract. Unfilled
// days are data, not errors: they land in UnassignedSlots.
type GenerateAssignmentsResponse struct {
	RunID              string                `json:"runId"`
	AssignmentsCreated int                   `json:"assignmentsCreated"`
	SlotsAssigned      int                   `json:"slotsAssigned"`
	UnassignedSlots    []string              `json:"unassignedSlots"`
	Assignments        []DayAssignmentView   `json:"assignments"`
	AlgorithmSteps     []AlgorithmStepReport `json:"algorithmSteps"`
}
