package identity

import "strings"

// Kind classifies an observed participant.
type Kind string

const (
	KindUser    Kind = "user"
	KindChannel Kind = "channel"
	KindGroup   Kind = "group"
	KindUnknown Kind = "unknown"
)

// Identity is one sender, channel or group as seen in the stream.
//
// Kind-specific fields are pointers: nil means the key is absent from the
// stored record, which is what Merge relies on.
type Identity struct {
	ID   string `json:"id,omitempty"`
	Kind Kind   `json:"type"`

	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Username  *string `json:"username,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	IsSelf    *bool   `json:"is_self,omitempty"`

	Title       *string `json:"title,omitempty"`
	IsVerified  *bool   `json:"is_verified,omitempty"`
	IsScam      *bool   `json:"is_scam,omitempty"`
	IsGigagroup *bool   `json:"is_gigagroup,omitempty"`
	IsMegagroup *bool   `json:"is_megagroup,omitempty"`
}

// Merge overwrites fields of id with every field present in incoming.
// Fields absent in incoming are left untouched.
func (id *Identity) Merge(incoming Identity) {
	if incoming.ID != "" {
		id.ID = incoming.ID
	}
	if incoming.Kind != "" {
		id.Kind = incoming.Kind
	}
	mergeString(&id.FirstName, incoming.FirstName)
	mergeString(&id.LastName, incoming.LastName)
	mergeString(&id.Username, incoming.Username)
	mergeString(&id.Phone, incoming.Phone)
	mergeBool(&id.IsSelf, incoming.IsSelf)
	mergeString(&id.Title, incoming.Title)
	mergeBool(&id.IsVerified, incoming.IsVerified)
	mergeBool(&id.IsScam, incoming.IsScam)
	mergeBool(&id.IsGigagroup, incoming.IsGigagroup)
	mergeBool(&id.IsMegagroup, incoming.IsMegagroup)
}

// Clone returns a deep copy that shares no pointers with id.
func (id Identity) Clone() Identity {
	out := id
	out.FirstName = cloneString(id.FirstName)
	out.LastName = cloneString(id.LastName)
	out.Username = cloneString(id.Username)
	out.Phone = cloneString(id.Phone)
	out.IsSelf = cloneBool(id.IsSelf)
	out.Title = cloneString(id.Title)
	out.IsVerified = cloneBool(id.IsVerified)
	out.IsScam = cloneBool(id.IsScam)
	out.IsGigagroup = cloneBool(id.IsGigagroup)
	out.IsMegagroup = cloneBool(id.IsMegagroup)
	return out
}

// DisplayTitle returns the first non-empty of title, first name, username, id.
func (id Identity) DisplayTitle() string {
	for _, s := range []string{Value(id.Title), Value(id.FirstName), Value(id.Username)} {
		if s != "" {
			return s
		}
	}
	return id.ID
}

// FullName joins first and last name, trimmed.
func (id Identity) FullName() string {
	return strings.TrimSpace(Value(id.FirstName) + " " + Value(id.LastName))
}

// Value dereferences s, returning "" for nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Flag dereferences b, returning false for nil.
func Flag(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

func mergeString(dst **string, src *string) {
	if src != nil {
		*dst = cloneString(src)
	}
}

func mergeBool(dst **bool, src *bool) {
	if src != nil {
		*dst = cloneBool(src)
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
