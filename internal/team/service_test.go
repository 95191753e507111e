package team

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-commissions/internal/common"
)

type stubStore struct {
	members map[uuid.UUID]Member
}

func newStubStore() *stubStore {
	return &stubStore{members: map[uuid.UUID]Member{}}
}

func (s *stubStore) Insert(_ context.Context, m Member) (Member, error) {
	for _, existing := range s.members {
		if strings.EqualFold(existing.Email, m.Email) {
			return Member{}, ErrDuplicateEmail
		}
	}
	m.ID = uuid.New()
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	s.members[m.ID] = m
	return m, nil
}

func (s *stubStore) Get(_ context.Context, orgID, id uuid.UUID) (Member, error) {
	m, ok := s.members[id]
	if !ok || m.OrganizationID != orgID {
		return Member{}, ErrNotFound
	}
	return m, nil
}

func (s *stubStore) GetByEmail(_ context.Context, email string) (Member, error) {
	for _, m := range s.members {
		if strings.EqualFold(m.Email, email) {
			return m, nil
		}
	}
	return Member{}, ErrNotFound
}

func (s *stubStore) List(_ context.Context, orgID uuid.UUID) ([]Member, error) {
	var out []Member
	for _, m := range s.members {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubStore) ListActiveByRole(_ context.Context, orgID uuid.UUID, role Role) ([]Member, error) {
	var out []Member
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.Role == role && m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubStore) Update(_ context.Context, m Member) (Member, error) {
	if _, ok := s.members[m.ID]; !ok {
		return Member{}, ErrNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	s.members[m.ID] = m
	return m, nil
}

func (s *stubStore) CountActiveAdmins(_ context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.Role == RoleAdmin && m.Active {
			count++
		}
	}
	return count, nil
}

func actorWithRole(orgID uuid.UUID, role Role) common.Actor {
	return common.Actor{
		MemberID:       uuid.New().String(),
		OrganizationID: orgID.String(),
		Role:           string(role),
	}
}

func TestAddMemberRequiresManagerOrAdmin(t *testing.T) {
	svc := &Service{Store: newStubStore()}
	orgID := uuid.New()

	_, err := svc.AddMember(context.Background(), actorWithRole(orgID, RoleTelesales), AddMemberInput{
		Name: "Sam", Email: "sam@example.com", Role: RoleBDM, Password: "supersecret",
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	created, err := svc.AddMember(context.Background(), actorWithRole(orgID, RoleManager), AddMemberInput{
		Name: "Sam", Email: "Sam@Example.com", Role: RoleBDM, Password: "supersecret",
	})
	require.NoError(t, err)
	require.Equal(t, "sam@example.com", created.Email)
	require.True(t, created.Active)
	require.NotEmpty(t, created.PasswordHash)
	require.NotEqual(t, "supersecret", created.PasswordHash)
}

func TestAddMemberRejectsDuplicateEmail(t *testing.T) {
	svc := &Service{Store: newStubStore()}
	orgID := uuid.New()
	actor := actorWithRole(orgID, RoleAdmin)

	_, err := svc.AddMember(context.Background(), actor, AddMemberInput{
		Name: "Sam", Email: "sam@example.com", Role: RoleBDM, Password: "supersecret",
	})
	require.NoError(t, err)

	_, err = svc.AddMember(context.Background(), actor, AddMemberInput{
		Name: "Sammy", Email: "sam@example.com", Role: RoleTelesales, Password: "supersecret",
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CONFLICT", appErr.Code)
}

func TestAddMemberValidation(t *testing.T) {
	svc := &Service{Store: newStubStore()}
	actor := actorWithRole(uuid.New(), RoleAdmin)

	cases := []AddMemberInput{
		{Name: "", Email: "a@b.com", Role: RoleBDM, Password: "supersecret"},
		{Name: "Sam", Email: "not-an-email", Role: RoleBDM, Password: "supersecret"},
		{Name: "Sam", Email: "a@b.com", Role: Role("ceo"), Password: "supersecret"},
		{Name: "Sam", Email: "a@b.com", Role: RoleBDM, Password: "short"},
		{Name: "Sam", Email: "a@b.com", Role: RoleBDM, Password: "supersecret", CommissionRateBps: 10001},
	}
	for _, input := range cases {
		_, err := svc.AddMember(context.Background(), actor, input)
		require.Error(t, err)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	}
}

func TestUpdateMemberProtectsLastActiveAdmin(t *testing.T) {
	store := newStubStore()
	svc := &Service{Store: store}
	orgID := uuid.New()
	actor := actorWithRole(orgID, RoleAdmin)

	admin, err := svc.AddMember(context.Background(), actor, AddMemberInput{
		Name: "Ada", Email: "ada@example.com", Role: RoleAdmin, Password: "supersecret",
	})
	require.NoError(t, err)

	inactive := false
	_, err = svc.UpdateMember(context.Background(), actor, admin.ID, UpdateMemberInput{Active: &inactive})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	demoted := RoleBDM
	_, err = svc.UpdateMember(context.Background(), actor, admin.ID, UpdateMemberInput{Role: &demoted})
	require.Error(t, err)

	// A second active admin lifts the restriction.
	_, err = svc.AddMember(context.Background(), actor, AddMemberInput{
		Name: "Bob", Email: "bob@example.com", Role: RoleAdmin, Password: "supersecret",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateMember(context.Background(), actor, admin.ID, UpdateMemberInput{Active: &inactive})
	require.NoError(t, err)
	require.False(t, updated.Active)
}

func TestMemberActive(t *testing.T) {
	store := newStubStore()
	svc := &Service{Store: store}
	orgID := uuid.New()
	actor := actorWithRole(orgID, RoleAdmin)

	m, err := svc.AddMember(context.Background(), actor, AddMemberInput{
		Name: "Sam", Email: "sam@example.com", Role: RoleBDM, Password: "supersecret",
	})
	require.NoError(t, err)

	active, err := svc.MemberActive(context.Background(), orgID, m.ID)
	require.NoError(t, err)
	require.True(t, active)

	active, err = svc.MemberActive(context.Background(), orgID, uuid.New())
	require.NoError(t, err)
	require.False(t, active)

	// Members of other organizations are invisible.
	active, err = svc.MemberActive(context.Background(), uuid.New(), m.ID)
	require.NoError(t, err)
	require.False(t, active)
}

func TestListActiveBDMsFiltersRoleAndActive(t *testing.T) {
	store := newStubStore()
	svc := &Service{Store: store}
	orgID := uuid.New()
	actor := actorWithRole(orgID, RoleAdmin)

	bdm, err := svc.AddMember(context.Background(), actor, AddMemberInput{
		Name: "Bea", Email: "bea@example.com", Role: RoleBDM, Password: "supersecret",
	})
	require.NoError(t, err)
	_, err = svc.AddMember(context.Background(), actor, AddMemberInput{
		Name: "Tel", Email: "tel@example.com", Role: RoleTelesales, Password: "supersecret",
	})
	require.NoError(t, err)

	bdms, err := svc.ListActiveBDMs(context.Background(), orgID)
	require.NoError(t, err)
	require.Len(t, bdms, 1)
	require.Equal(t, bdm.ID, bdms[0].ID)
}

func TestMemberNamesScopedToOrganization(t *testing.T) {
	store := newStubStore()
	svc := &Service{Store: store}
	orgID := uuid.New()
	actor := actorWithRole(orgID, RoleAdmin)

	tess, err := svc.AddMember(context.Background(), actor, AddMemberInput{
		Name: "Tess", Email: "tess@example.com", Role: RoleTelesales, Password: "supersecret",
	})
	require.NoError(t, err)

	outsider := uuid.New()
	names, err := svc.MemberNames(context.Background(), orgID, []uuid.UUID{tess.ID, outsider})
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]string{tess.ID: "Tess"}, names)

	empty, err := svc.MemberNames(context.Background(), orgID, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}
