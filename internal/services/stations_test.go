package services

import (
	"testing"

	"naftapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStationInput() StationInput {
	return StationInput{
		Name:      "Axion Ruta 5",
		Brand:     "Axion",
		Address:   "Ruta 5 km 120",
		City:      "Luján",
		Province:  "Buenos Aires",
		Latitude:  -34.57,
		Longitude: -59.11,
	}
}

func TestNextState(t *testing.T) {
	tests := []struct {
		from   models.ModerationState
		action models.ModerationAction
		want   models.ModerationState
		ok     bool
	}{
		{models.StatePending, models.ActionApprove, models.StateApproved, true},
		{models.StatePending, models.ActionReject, models.StateRejected, true},
		{models.StateRejected, models.ActionResubmit, models.StatePending, true},
		{models.StatePending, models.ActionResubmit, "", false},
		{models.StateApproved, models.ActionApprove, "", false},
		{models.StateApproved, models.ActionReject, "", false},
		{models.StateApproved, models.ActionResubmit, "", false},
		{models.StateRejected, models.ActionApprove, "", false},
		{models.StateRejected, models.ActionReject, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := NextState(tt.from, tt.action)
			if !tt.ok {
				requireKind(t, err, KindInvalidState)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateStation(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	owner := f.user(t, "Ana")

	st, err := svc.CreateStation(f.ctx, identity(owner), validStationInput())
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, st.ModerationState)
	assert.Equal(t, models.SourceUser, st.Source)
	assert.True(t, st.IsCreatedBy(owner.ID))

	admins := f.queue.adminNotes()
	require.Len(t, admins, 1)
	assert.Equal(t, models.NotificationStationPending, admins[0].Kind)
	assert.Equal(t, "Axion Ruta 5", admins[0].Context["station_name"])

	_, err = svc.CreateStation(f.ctx, identity(owner), validStationInput())
	requireKind(t, err, KindConflict)

	// Another user is unaffected.
	_, err = svc.CreateStation(f.ctx, identity(f.user(t, "Bruno")), validStationInput())
	require.NoError(t, err)
}

func TestCreateStationByAdminIsApproved(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	admin := f.admin(t, "Root")

	for i := 0; i < 2; i++ {
		st, err := svc.CreateStation(f.ctx, identity(admin), validStationInput())
		require.NoError(t, err)
		assert.Equal(t, models.StateApproved, st.ModerationState)
	}
	assert.Empty(t, f.queue.adminNotes())
}

func TestCreateStationValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	owner := identity(f.user(t, "Ana"))

	tests := []struct {
		name  string
		edit  func(*StationInput)
		field string
	}{
		{"missing name", func(in *StationInput) { in.Name = "  " }, "name"},
		{"missing address", func(in *StationInput) { in.Address = "" }, "address"},
		{"missing city", func(in *StationInput) { in.City = "" }, "city"},
		{"missing province", func(in *StationInput) { in.Province = "" }, "province"},
		{"latitude outside Argentina", func(in *StationInput) { in.Latitude = 40.4 }, "latitude"},
		{"longitude outside Argentina", func(in *StationInput) { in.Longitude = -3.7 }, "longitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validStationInput()
			tt.edit(&in)
			_, err := svc.CreateStation(f.ctx, owner, in)
			requireKind(t, err, KindValidation)
			var domainErr *Error
			require.ErrorAs(t, err, &domainErr)
			assert.Contains(t, domainErr.Fields, tt.field)
		})
	}

	_, err := svc.CreateStation(f.ctx, nil, validStationInput())
	requireKind(t, err, KindUnauthenticated)
}

func TestModerateGuards(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	admin := identity(f.admin(t, "Root"))
	owner := f.user(t, "Ana")
	pending := f.userStation(t, owner, models.StatePending)

	_, err := svc.Moderate(f.ctx, identity(owner), pending.ID, models.ActionApprove, "")
	requireKind(t, err, KindForbidden)

	_, err = svc.Moderate(f.ctx, admin, 999, models.ActionApprove, "")
	requireKind(t, err, KindNotFound)

	_, err = svc.Moderate(f.ctx, admin, f.officialStation(t).ID, models.ActionApprove, "")
	requireKind(t, err, KindInvalidSource)

	_, err = svc.Moderate(f.ctx, admin, pending.ID, models.ActionResubmit, "")
	requireKind(t, err, KindValidation)

	_, err = svc.Moderate(f.ctx, admin, pending.ID, models.ActionApprove, "")
	require.NoError(t, err)

	// Approved is terminal.
	_, err = svc.Moderate(f.ctx, admin, pending.ID, models.ActionApprove, "")
	requireKind(t, err, KindInvalidState)
	_, err = svc.Moderate(f.ctx, admin, pending.ID, models.ActionReject, "tarde")
	requireKind(t, err, KindInvalidState)

	history, err := svc.ModerationHistory(f.ctx, admin, pending.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ActionApprove, history[0].Action)
}

func TestModerateApproveNotifiesCreator(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	admin := f.admin(t, "Root")
	owner := f.user(t, "Ana")
	st := f.userStation(t, owner, models.StatePending)

	view, err := svc.Moderate(f.ctx, identity(admin), st.ID, models.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.StateApproved, view.ModerationState)

	notes := f.queue.userNotes()
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationStationApproved, notes[0].Kind)
	assert.Equal(t, owner.Email, notes[0].Recipient.Email)
	assert.Contains(t, f.cache.invalidated(), StationTag(st.ID))

	var record models.ModerationRecord
	require.NoError(t, f.db.Where("station_id = ?", st.ID).First(&record).Error)
	assert.Equal(t, admin.ID, record.ModeratorUserID)
}

func TestResubmitGuards(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	owner := f.user(t, "Ana")
	stranger := f.user(t, "Bruno")
	admin := f.admin(t, "Root")

	rejected := f.userStation(t, owner, models.StateRejected)
	approved := f.userStation(t, owner, models.StateApproved)

	_, err := svc.Resubmit(f.ctx, identity(stranger), rejected.ID, StationChanges{})
	requireKind(t, err, KindForbidden)
	_, err = svc.Resubmit(f.ctx, identity(admin), rejected.ID, StationChanges{})
	requireKind(t, err, KindForbidden)
	_, err = svc.Resubmit(f.ctx, identity(owner), f.officialStation(t).ID, StationChanges{})
	requireKind(t, err, KindForbidden)
	_, err = svc.Resubmit(f.ctx, identity(owner), approved.ID, StationChanges{})
	requireKind(t, err, KindInvalidState)
	_, err = svc.Resubmit(f.ctx, identity(owner), 999, StationChanges{})
	requireKind(t, err, KindNotFound)

	bad := 10.0
	_, err = svc.Resubmit(f.ctx, identity(owner), rejected.ID, StationChanges{Latitude: &bad})
	requireKind(t, err, KindValidation)

	var stored models.Station
	require.NoError(t, f.db.First(&stored, rejected.ID).Error)
	assert.Equal(t, models.StateRejected, stored.ModerationState)
}

func TestResubmitBlockedByAnotherPendingStation(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	owner := f.user(t, "Ana")
	rejected := f.userStation(t, owner, models.StateRejected)
	f.userStation(t, owner, models.StatePending)

	_, err := svc.Resubmit(f.ctx, identity(owner), rejected.ID, StationChanges{})
	requireKind(t, err, KindConflict)
}

func TestGetStationVisibility(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	owner := f.user(t, "Ana")
	admin := f.admin(t, "Root")
	pending := f.userStation(t, owner, models.StatePending)

	_, err := svc.GetStation(f.ctx, pending.ID, nil)
	requireKind(t, err, KindNotFound)
	_, err = svc.GetStation(f.ctx, pending.ID, identity(f.user(t, "Bruno")))
	requireKind(t, err, KindNotFound)

	view, err := svc.GetStation(f.ctx, pending.ID, identity(owner))
	require.NoError(t, err)
	assert.Equal(t, pending.ID, view.ID)

	_, err = svc.Moderate(f.ctx, identity(admin), pending.ID, models.ActionReject, "faltan datos")
	require.NoError(t, err)

	view, err = svc.GetStation(f.ctx, pending.ID, identity(owner))
	require.NoError(t, err)
	assert.Equal(t, "faltan datos", view.PreviousRejectionReason)

	view, err = svc.GetStation(f.ctx, pending.ID, identity(admin))
	require.NoError(t, err)
	assert.Equal(t, "faltan datos", view.PreviousRejectionReason)

	public, err := svc.GetStation(f.ctx, f.officialStation(t).ID, nil)
	require.NoError(t, err)
	assert.Empty(t, public.PreviousRejectionReason)
}

func TestListPendingStations(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	admin := identity(f.admin(t, "Root"))
	first := f.userStation(t, f.user(t, "Ana"), models.StatePending)
	second := f.userStation(t, f.user(t, "Bruno"), models.StatePending)
	f.userStation(t, f.user(t, "Carla"), models.StateRejected)
	f.officialStation(t)

	pending, err := svc.ListPendingStations(f.ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)

	_, err = svc.ListPendingStations(f.ctx, identity(f.user(t, "Diego")))
	requireKind(t, err, KindForbidden)
	_, err = svc.ModerationHistory(f.ctx, identity(f.user(t, "Eva")), first.ID)
	requireKind(t, err, KindForbidden)
}

// Create → blocked second create → reject → resubmit surfaces the reason.
func TestStationModerationScenario(t *testing.T) {
	f := newFixture(t)
	svc := NewStationService(f.deps)
	owner := f.user(t, "Ana")
	admin := f.admin(t, "Root")

	st, err := svc.CreateStation(f.ctx, identity(owner), validStationInput())
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, st.ModerationState)

	_, err = svc.CreateStation(f.ctx, identity(owner), validStationInput())
	requireKind(t, err, KindConflict)

	rejected, err := svc.Moderate(f.ctx, identity(admin), st.ID, models.ActionReject, "dirección incorrecta")
	require.NoError(t, err)
	assert.Equal(t, models.StateRejected, rejected.ModerationState)

	address := "Ruta 5 km 121"
	resubmitted, err := svc.Resubmit(f.ctx, identity(owner), st.ID, StationChanges{Address: &address})
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, resubmitted.ModerationState)
	assert.Equal(t, "dirección incorrecta", resubmitted.PreviousRejectionReason)
	assert.Equal(t, address, resubmitted.Address)

	var stored models.Station
	require.NoError(t, f.db.First(&stored, st.ID).Error)
	assert.Equal(t, models.StatePending, stored.ModerationState)
	assert.Equal(t, address, stored.Address)

	notes := f.queue.userNotes()
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotificationStationRejected, notes[0].Kind)
	assert.Equal(t, "dirección incorrecta", notes[0].Context["reason"])
	assert.Equal(t, models.NotificationStationResubmitted, notes[1].Kind)
	assert.Equal(t, "dirección incorrecta", notes[1].Context["previous_reason"])

	// Pending created + pending again after resubmit.
	admins := f.queue.adminNotes()
	require.Len(t, admins, 2)
	for _, n := range admins {
		assert.Equal(t, models.NotificationStationPending, n.Kind)
	}

	history, err := svc.ModerationHistory(f.ctx, identity(admin), st.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "dirección incorrecta", history[0].Reason)

	// Still one pending station per user.
	_, err = svc.CreateStation(f.ctx, identity(owner), validStationInput())
	requireKind(t, err, KindConflict)
}
