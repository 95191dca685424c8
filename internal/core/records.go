package core

// Registration records as written by the CRUD layer. The engine only reads
// them; backends accept them in bulk through a Dataset.
type (
	EventMaster struct {
		ID      int64     `json:"id"`
		EventID EventID   `json:"event_id"`
		Name    string    `json:"name"`
		Kind    EventKind `json:"kind"`
		Fee     Money     `json:"fee"`
	}

	Participant struct {
		ID            ParticipantID `json:"id"`
		EventID       EventID       `json:"event_id"`
		InstitutionID InstitutionID `json:"institution_id"`
		Name          string        `json:"name"`
		Status        Status        `json:"status"`
	}

	// ParticipantEntry links a participant to an event master with its own fee.
	ParticipantEntry struct {
		ParticipantID ParticipantID `json:"participant_id"`
		EventMasterID int64         `json:"event_master_id"`
		Fee           Money         `json:"fee"`
	}

	// TeamEntry is charged the fee of the event master it targets.
	TeamEntry struct {
		ID            int64         `json:"id"`
		EventID       EventID       `json:"event_id"`
		InstitutionID InstitutionID `json:"institution_id"`
		EventMasterID int64         `json:"event_master_id"`
		Name          string        `json:"name"`
		Status        Status        `json:"status"`
	}

	InstitutionRegistration struct {
		ID            int64         `json:"id"`
		EventID       EventID       `json:"event_id"`
		InstitutionID InstitutionID `json:"institution_id"`
		EventMasterID int64         `json:"event_master_id"`
		Status        Status        `json:"status"`
	}

	// EventInstitution records that an institution takes part in an event.
	EventInstitution struct {
		EventID       EventID       `json:"event_id"`
		InstitutionID InstitutionID `json:"institution_id"`
	}

	// Dataset is a bulk set of registration records used to seed a backend.
	Dataset struct {
		Institutions       []Institution             `json:"institutions"`
		EventInstitutions  []EventInstitution        `json:"event_institutions"`
		EventMasters       []EventMaster             `json:"event_masters"`
		Participants       []Participant             `json:"participants"`
		ParticipantEntries []ParticipantEntry        `json:"participant_entries"`
		TeamEntries        []TeamEntry               `json:"team_entries"`
		Registrations      []InstitutionRegistration `json:"institution_registrations"`
		FundTransfers      []FundTransfer            `json:"fund_transfers"`
		LabelOverrides     []LabelOverride           `json:"label_overrides"`
	}
)
