package identity

// RawKind is the shape a transport adapter recognized for a participant.
type RawKind string

const (
	RawUser    RawKind = "user"
	RawChannel RawKind = "channel"
	RawGroup   RawKind = "group"
	RawOther   RawKind = "other"
)

// Raw is the transport-neutral participant record built by adapters.
// Adapters fill in whatever their SDK exposes and leave the rest zero.
type Raw struct {
	Kind RawKind
	ID   string

	FirstName string
	LastName  string
	Username  string
	Phone     string
	Title     string

	Self      bool
	Verified  bool
	Scam      bool
	Gigagroup bool
	Megagroup bool
}

// Normalize converts a raw participant into an Identity. It never fails:
// nil yields an unknown identity without id, unrecognized kinds yield an
// unknown identity carrying only the id.
func Normalize(raw *Raw) Identity {
	if raw == nil {
		return Identity{Kind: KindUnknown}
	}

	out := Identity{ID: raw.ID}
	switch raw.Kind {
	case RawUser:
		out.Kind = KindUser
		out.FirstName = String(raw.FirstName)
		out.LastName = String(raw.LastName)
		out.Username = String(raw.Username)
		out.Phone = String(raw.Phone)
		out.IsSelf = Bool(raw.Self)
	case RawChannel:
		out.Kind = KindChannel
		out.Title = String(raw.Title)
		out.Username = String(raw.Username)
		out.IsVerified = Bool(raw.Verified)
		out.IsScam = Bool(raw.Scam)
		out.IsGigagroup = Bool(raw.Gigagroup)
	case RawGroup:
		out.Kind = KindGroup
		out.Title = String(raw.Title)
		out.Username = String(raw.Username)
		out.IsMegagroup = Bool(raw.Megagroup)
	default:
		out.Kind = KindUnknown
	}
	return out
}
