package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleGuest, ActionPost, false},
		{RoleGuest, ActionStar, false},
		{RoleGuest, ActionApprove, false},
		{RoleStudent, ActionPost, true},
		{RoleStudent, ActionStar, true},
		{RoleStudent, ActionApprove, false},
		{RoleAdmin, ActionPost, true},
		{RoleAdmin, ActionStar, true},
		{RoleAdmin, ActionApprove, true},
	}

	for _, tc := range cases {
		t.Run(tc.role.String()+"/"+tc.action.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.role.Can(tc.action))
		})
	}
}

func TestRoleJSON(t *testing.T) {
	var u CurrentUser
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"username":"sagehen","name":"Cecil","role":"Admin"}`), &u))
	assert.Equal(t, RoleAdmin, u.Role)

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"role":"admin"`)

	err = json.Unmarshal([]byte(`{"role":"superuser"}`), &u)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRole))
}

func TestSubmissionStatus(t *testing.T) {
	assert.Equal(t, StatusApproved, RoleAdmin.SubmissionStatus())
	assert.Equal(t, StatusPending, RoleStudent.SubmissionStatus())
}
