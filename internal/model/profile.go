package model

import (
	"encoding/json"
)

// Profile is the client's cached representation of the authenticated user.
// Every attribute is optional: the profile is assembled from partial server fragments.
type Profile struct {
	ID          ID       `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Username    string   `json:"username,omitempty"`
	Email       string   `json:"email,omitempty"`
	Image       string   `json:"image,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	BirthDate   string   `json:"birthDate,omitempty"`
	DateOfBirth string   `json:"dateOfBirth,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Address     string   `json:"address,omitempty"`
	Role        string   `json:"role,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Active      *bool    `json:"active,omitempty"`
	ExpiresIn   *int64   `json:"expiresIn,omitempty"`

	// Extra keeps fields the client does not interpret (achievements, counters, joined, ...).
	Extra map[string]any `json:"-"`
}

// Patch is a partial profile update: only the keys present are applied.
type Patch map[string]any

type profileFields Profile

var knownProfileKeys = map[string]struct{}{
	"id": {}, "name": {}, "username": {}, "email": {}, "image": {}, "avatar": {}, "bio": {},
	"birthDate": {}, "dateOfBirth": {}, "phone": {}, "phoneNumber": {}, "gender": {},
	"address": {}, "role": {}, "roles": {}, "active": {}, "expiresIn": {},
}

// UnmarshalJSON decodes known fields and collects the rest into Extra.
func (p *Profile) UnmarshalJSON(b []byte) error {
	var f profileFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k := range knownProfileKeys {
		delete(raw, k)
	}
	*p = Profile(f)
	if len(raw) > 0 {
		p.Extra = raw
	} else {
		p.Extra = nil
	}
	return nil
}

// MarshalJSON encodes known fields followed by Extra; known fields win on a clash.
func (p Profile) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(profileFields(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return base, nil
	}
	out := make(map[string]any, len(p.Extra)+8)
	for k, v := range p.Extra {
		if _, known := knownProfileKeys[k]; !known {
			out[k] = v
		}
	}
	var fields map[string]any
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Roles != nil {
		cp.Roles = append([]string(nil), p.Roles...)
	}
	if p.Active != nil {
		v := *p.Active
		cp.Active = &v
	}
	if p.ExpiresIn != nil {
		v := *p.ExpiresIn
		cp.ExpiresIn = &v
	}
	if p.Extra != nil {
		cp.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// Usable reports whether the profile identifies somebody (email or id present).
func (p *Profile) Usable() bool {
	return p != nil && (p.Email != "" || p.ID != "")
}

// Merge overlays the keys present in patch onto p and returns the result; p is not modified.
func (p *Profile) Merge(patch Patch) (*Profile, error) {
	base := map[string]any{}
	if p != nil {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &base); err != nil {
			return nil, err
		}
	}
	for k, v := range patch {
		base[k] = v
	}
	b, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var out Profile
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchFromJSON decodes a JSON object into a Patch.
func PatchFromJSON(b []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// PatchOf converts a profile into a patch carrying only its non-empty fields.
func PatchOf(p *Profile) Patch {
	if p == nil {
		return Patch{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return Patch{}
	}
	out, err := PatchFromJSON(b)
	if err != nil {
		return Patch{}
	}
	return out
}
