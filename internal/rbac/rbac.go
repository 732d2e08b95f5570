package rbac

type Role string
type Action string

const (
	RoleViewer      Role = "viewer"
	RoleContributor Role = "contributor"
	RoleCurator     Role = "curator"
	RoleAdmin       Role = "admin"
)

const (
	ActionRead       Action = "read"
	ActionContribute Action = "contribute"
	ActionReview     Action = "review"
	ActionAdmin      Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleCurator:
		return action == ActionRead || action == ActionContribute || action == ActionReview
	case RoleContributor:
		return action == ActionRead || action == ActionContribute
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleContributor, RoleCurator, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
