// Package fixtures holds a reference dataset shared by backend, service and
// HTTP tests.
//
// Event 1 / institution 10 reproduces the reconciliation example: 10
// submitted participants, 4 individual entries at 100, 2 approved team
// entries at 150, 1 approved institution registration at 300 and transfers of
// 200 approved and 100 pending. Excluded statuses and neighbouring scopes are
// seeded alongside so leaks show up as wrong totals.
package fixtures

import "eventfees/internal/core"

const (
	Event      core.EventID       = 1
	OtherEvent core.EventID       = 2
	North      core.InstitutionID = 10
	River      core.InstitutionID = 20
	// Lake takes part in no event.
	Lake       core.InstitutionID = 30
)

// Transfer ids.
const (
	NorthApproved core.TransferID = 1
	NorthPending  core.TransferID = 2
	NorthRejected core.TransferID = 3
	RiverApproved core.TransferID = 4
	NorthOther    core.TransferID = 5
)

// Expected snapshot totals, in cents.
const (
	NorthDue           int64 = 100000
	NorthApprovedFunds int64 = 20000
	NorthPendingFunds  int64 = 10000
	NorthBalance       int64 = 80000
	RiverDue           int64 = 55000
	RiverApprovedFunds int64 = 45000
	RiverBalance       int64 = 10000
	NorthOtherDue      int64 = 75000
)

func Reconciliation() core.Dataset {
	ds := core.Dataset{
		Institutions: []core.Institution{
			{ID: North, Name: "Northside Academy"},
			{ID: River, Name: "Riverside College"},
			{ID: Lake, Name: "Lakeview School"},
		},
		EventInstitutions: []core.EventInstitution{
			{EventID: Event, InstitutionID: North},
			{EventID: Event, InstitutionID: River},
			{EventID: OtherEvent, InstitutionID: North},
		},
		EventMasters: []core.EventMaster{
			{ID: 100, EventID: Event, Name: "100m Sprint", Kind: core.KindIndividual, Fee: core.Cents(10000)},
			{ID: 101, EventID: Event, Name: "Long Jump", Kind: core.KindIndividual, Fee: core.Cents(10000)},
			{ID: 102, EventID: Event, Name: "4x100m Relay", Kind: core.KindTeam, Fee: core.Cents(15000)},
			{ID: 103, EventID: Event, Name: "Institution Cup", Kind: core.KindInstitution, Fee: core.Cents(30000)},
			{ID: 200, EventID: OtherEvent, Name: "Marathon", Kind: core.KindIndividual, Fee: core.Cents(50000)},
			{ID: 201, EventID: OtherEvent, Name: "Team Relay", Kind: core.KindTeam, Fee: core.Cents(25000)},
		},
		TeamEntries: []core.TeamEntry{
			{ID: 1, EventID: Event, InstitutionID: North, EventMasterID: 102, Name: "North A", Status: core.StatusApproved},
			{ID: 2, EventID: Event, InstitutionID: North, EventMasterID: 102, Name: "North B", Status: core.StatusApproved},
			{ID: 3, EventID: Event, InstitutionID: North, EventMasterID: 102, Name: "North C", Status: core.StatusRejected},
			{ID: 4, EventID: Event, InstitutionID: River, EventMasterID: 102, Name: "River A", Status: core.StatusPending},
			{ID: 5, EventID: OtherEvent, InstitutionID: North, EventMasterID: 201, Name: "North Relay", Status: core.StatusPending},
		},
		Registrations: []core.InstitutionRegistration{
			{ID: 1, EventID: Event, InstitutionID: North, EventMasterID: 103, Status: core.StatusApproved},
			{ID: 2, EventID: Event, InstitutionID: North, EventMasterID: 103, Status: core.StatusRejected},
			{ID: 3, EventID: Event, InstitutionID: River, EventMasterID: 103, Status: core.StatusPending},
		},
		FundTransfers: []core.FundTransfer{
			{ID: NorthApproved, EventID: Event, InstitutionID: North, Amount: core.Cents(20000), Reference: "TRX-1001", Status: core.StatusApproved},
			{ID: NorthPending, EventID: Event, InstitutionID: North, Amount: core.Cents(10000), Reference: "TRX-1002", Status: core.StatusPending},
			{ID: NorthRejected, EventID: Event, InstitutionID: North, Amount: core.Cents(99900), Reference: "TRX-1003", Status: core.StatusRejected},
			{ID: RiverApproved, EventID: Event, InstitutionID: River, Amount: core.Cents(45000), Reference: "TRX-2001", Status: core.StatusApproved},
			{ID: NorthOther, EventID: OtherEvent, InstitutionID: North, Amount: core.Cents(5000), Reference: "TRX-3001", Status: core.StatusPending},
		},
		LabelOverrides: []core.LabelOverride{
			{EventID: Event, Key: "First_Place", Label: " Gold Medal ", SortOrder: 1},
			{EventID: Event, Key: "unknown_key", Label: "X", SortOrder: 2},
			{EventID: Event, Key: "second_place", Label: "Silver", SortOrder: 3},
			{EventID: OtherEvent, Key: "first_place", Label: "Champion", SortOrder: 1},
		},
	}

	for i := 1; i <= 10; i++ {
		ds.Participants = append(ds.Participants, core.Participant{
			ID:            core.ParticipantID(i),
			EventID:       Event,
			InstitutionID: North,
			Name:          "Athlete",
			Status:        core.StatusSubmitted,
		})
	}
	ds.Participants = append(ds.Participants,
		core.Participant{ID: 11, EventID: Event, InstitutionID: North, Name: "Draft", Status: core.StatusDraft},
		core.Participant{ID: 12, EventID: Event, InstitutionID: North, Name: "Rejected", Status: core.StatusRejected},
		core.Participant{ID: 21, EventID: Event, InstitutionID: River, Name: "River Athlete", Status: core.StatusApproved},
		core.Participant{ID: 31, EventID: OtherEvent, InstitutionID: North, Name: "Marathoner", Status: core.StatusSubmitted},
	)
	ds.ParticipantEntries = []core.ParticipantEntry{
		{ParticipantID: 1, EventMasterID: 100, Fee: core.Cents(10000)},
		{ParticipantID: 2, EventMasterID: 100, Fee: core.Cents(10000)},
		{ParticipantID: 3, EventMasterID: 101, Fee: core.Cents(10000)},
		{ParticipantID: 4, EventMasterID: 101, Fee: core.Cents(10000)},
		{ParticipantID: 11, EventMasterID: 100, Fee: core.Cents(10000)},
		{ParticipantID: 12, EventMasterID: 101, Fee: core.Cents(10000)},
		{ParticipantID: 21, EventMasterID: 100, Fee: core.Cents(10000)},
		{ParticipantID: 31, EventMasterID: 200, Fee: core.Cents(50000)},
	}
	return ds
}
