package auth

import "strings"

// catalogRoutes are readable by any signed-in user; every write needs ADMIN.
var catalogRoutes = []string{
	"/menuListType",
	"/menutypes",
	"/categories",
	"/items",
	"/categoryMenuTypes",
	"/ItemCategoryMenuType",
}

var routeRoles = map[string]UserRole{
	"/AdminCorrectMenus":        RoleAdmin,
	"/bookings":                 RoleAdmin,
	"POST /advanceMenu/publish": RoleAdmin,
}

func init() {
	for _, path := range catalogRoutes {
		for _, method := range []string{"POST", "PUT", "PATCH", "DELETE"} {
			routeRoles[method+" "+path] = RoleAdmin
		}
	}
}

// RequiredRole returns the role a request must carry, or "" when any
// authenticated caller is allowed. Method-specific keys win over plain
// path keys of the same length; longer prefixes win overall.
func RequiredRole(path string, method string) UserRole {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestRole UserRole
	var bestMethodSpecific bool

	for key, role := range routeRoles {
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod := strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !matchesPrefix(path, keyPath) {
			continue
		}

		if bestRole == "" || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			bestRole = role
		}
	}

	return bestRole
}

func matchesPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func Allowed(claims *Claims, path string, method string) bool {
	if claims == nil {
		return false
	}
	required := RequiredRole(path, method)
	return required == "" || claims.Role == required
}
