package dto

// CreateFamilyRequest registers a household unit.
type CreateFamilyRequest struct {
	Name             string `json:"name" validate:"required"`
	PrimaryParentID  string `json:"primaryParentId" validate:"required"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergencyContact"`
}

// UpdateFamilyRequest updates contact details. PrimaryParentID may be moved
// to another parent of the same family but never cleared.
type UpdateFamilyRequest struct {
	Name             *string `json:"name"`
	PrimaryParentID  *string `json:"primaryParentId"`
	Address          *string `json:"address"`
	EmergencyContact *string `json:"emergencyContact"`
}

// AddChildRequest attaches a child to a family.
type AddChildRequest struct {
	FullName string `json:"fullName" validate:"required"`
	School   string `json:"school"`
	Grade    string `json:"grade"`
}

// CreateGroupRequest registers a carpool group.
type CreateGroupRequest struct {
	Name         string `json:"name" validate:"required"`
	School       string `json:"school" validate:"required"`
	MeetingPoint string `json:"meetingPoint"`
	Description  string `json:"description"`
}

// JoinGroupRequest adds a family to a group.
type JoinGroupRequest struct {
	FamilyID string `json:"familyId" validate:"required"`
}
