package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want ID
	}{
		{`"abc"`, "abc"},
		{`42`, "42"},
		{`null`, ""},
		{`1e3`, "1e3"},
	}
	for _, tt := range tests {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(tt.in), &id), tt.in)
		require.Equal(t, tt.want, id)
	}

	var id ID
	require.Error(t, json.Unmarshal([]byte(`{}`), &id))

	n, ok := IntID(7).Int()
	require.True(t, ok)
	require.EqualValues(t, 7, n)
	_, ok = ID("x7").Int()
	require.False(t, ok)
}

func TestProfile_ExtraSurvivesRoundTrip(t *testing.T) {
	t.Parallel()
	in := `{"email":"a@b.io","joined":"2024-01-02","achievements":[1,2],"role":"STUDENT"}`

	var p Profile
	require.NoError(t, json.Unmarshal([]byte(in), &p))
	require.Equal(t, "a@b.io", p.Email)
	require.Equal(t, "2024-01-02", p.Extra["joined"])
	require.NotContains(t, p.Extra, "email")

	out, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, in, string(out))
}

func TestProfile_KnownFieldWinsOverExtra(t *testing.T) {
	t.Parallel()
	p := Profile{Email: "real@x.io", Extra: map[string]any{"email": "fake@x.io", "level": 3.0}}
	out, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `{"email":"real@x.io","level":3}`, string(out))
}

func TestProfile_Merge(t *testing.T) {
	t.Parallel()
	base := &Profile{Email: "a@b.io", Name: "Ann", Roles: []string{"STUDENT"}, Extra: map[string]any{"joined": "2024"}}

	got, err := base.Merge(Patch{"name": "Anna", "bio": "cook", "streak": 4.0})
	require.NoError(t, err)
	require.Equal(t, "a@b.io", got.Email)
	require.Equal(t, "Anna", got.Name)
	require.Equal(t, "cook", got.Bio)
	require.Equal(t, []string{"STUDENT"}, got.Roles)
	require.Equal(t, map[string]any{"joined": "2024", "streak": 4.0}, got.Extra)
	require.Equal(t, "Ann", base.Name, "receiver untouched")

	_, err = base.Merge(Patch{"roles": "not-a-list"})
	require.Error(t, err)

	var nilProfile *Profile
	got, err = nilProfile.Merge(Patch{"id": 9})
	require.NoError(t, err)
	require.Equal(t, ID("9"), got.ID)
}

func TestProfile_CloneIsDeep(t *testing.T) {
	t.Parallel()
	active := true
	p := &Profile{Roles: []string{"A"}, Active: &active, Extra: map[string]any{"k": "v"}}
	cp := p.Clone()
	cp.Roles[0] = "B"
	*cp.Active = false
	cp.Extra["k"] = "w"

	require.Equal(t, "A", p.Roles[0])
	require.True(t, *p.Active)
	require.Equal(t, "v", p.Extra["k"])
	require.Nil(t, (*Profile)(nil).Clone())
}

func TestProfile_Usable(t *testing.T) {
	t.Parallel()
	require.False(t, (*Profile)(nil).Usable())
	require.False(t, (&Profile{Name: "x"}).Usable())
	require.True(t, (&Profile{Email: "a@b"}).Usable())
	require.True(t, (&Profile{ID: "1"}).Usable())
}

func TestPatchOf(t *testing.T) {
	t.Parallel()
	require.Equal(t, Patch{}, PatchOf(nil))
	require.Equal(t, Patch{"email": "a@b", "x": 1.0}, PatchOf(&Profile{Email: "a@b", Extra: map[string]any{"x": 1.0}}))
}
