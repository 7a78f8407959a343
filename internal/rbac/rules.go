package rbac

const (
	PermQuizBrowse     = "quiz:browse"
	PermQuizCreate     = "quiz:create"
	PermQuizEditOwn    = "quiz:edit_own"
	PermQuizDeleteOwn  = "quiz:delete_own"
	PermResultViewAll  = "result:view_all"
	PermResultViewOwn  = "result:view_own"
	PermAttemptCreate  = "attempt:create"
	PermAttemptViewOwn = "attempt:view_own"
	PermAttemptSave    = "attempt:save"
	PermAttemptSubmit  = "attempt:submit"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"student": {
		PermQuizBrowse,
		PermResultViewOwn,
		"attempt:*",
	},
	"teacher": {
		PermQuizCreate,
		PermQuizEditOwn,
		PermQuizDeleteOwn,
		PermResultViewAll,
	},
}
