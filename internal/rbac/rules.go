package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"attempt:review",
	},
	"teacher": {
		"quiz:create",
		"quiz:view",
		"quiz:view-keys",
		"attempt:view-all",
		"attempt:grade",
	},
	"admin": {
		"*", // everything
	},
}
