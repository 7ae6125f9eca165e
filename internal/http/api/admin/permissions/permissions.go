// Package permissions catalogs the tenant admin routes and the plan limit each one consumes.
package permissions

import (
	"strings"
)

// Plan limit names consumed by creating routes. They match the billing limit types.
const (
	LimitEmployees = "employees"
	LimitTemplates = "templates"
)

// Definition describes an admin route.
type Definition struct {
	Key    string `json:"key"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Label  string `json:"label"`
	Module string `json:"module"`
	Limit  string `json:"limit,omitempty"` // Plan limit checked before the handler runs.
}

// Key builds a route key from method and path.
func Key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Definitions returns a copy of all route definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup finds the definition for a method and gin route path.
func Lookup(method, path string) (Definition, bool) {
	def, ok := definitionMap[Key(method, path)]
	return def, ok
}

// LimitFor returns the plan limit consumed by the route, or "".
func LimitFor(method, path string) string {
	def, ok := Lookup(method, path)
	if !ok {
		return ""
	}
	return def.Limit
}

func newDefinition(method, path, label, module string) Definition {
	upperMethod := strings.ToUpper(method)
	return Definition{
		Key:    Key(upperMethod, path),
		Method: upperMethod,
		Path:   path,
		Label:  label,
		Module: module,
	}
}

func (d Definition) consumes(limit string) Definition {
	d.Limit = limit
	return d
}

// definitions is the ordered list of admin routes.
var definitions = []Definition{
	newDefinition("POST", "/v0/admin/employees", "Create Employee", "Employees").consumes(LimitEmployees),
	newDefinition("GET", "/v0/admin/employees", "List Employees", "Employees"),
	newDefinition("GET", "/v0/admin/employees/:id", "Get Employee", "Employees"),
	newDefinition("PUT", "/v0/admin/employees/:id", "Update Employee", "Employees"),
	newDefinition("DELETE", "/v0/admin/employees/:id", "Delete Employee", "Employees"),

	newDefinition("POST", "/v0/admin/templates", "Create Template", "Templates").consumes(LimitTemplates),
	newDefinition("GET", "/v0/admin/templates", "List Templates", "Templates"),
	newDefinition("GET", "/v0/admin/templates/:id", "Get Template", "Templates"),
	newDefinition("PUT", "/v0/admin/templates/:id", "Update Template", "Templates"),
	newDefinition("DELETE", "/v0/admin/templates/:id", "Delete Template", "Templates"),
	newDefinition("POST", "/v0/admin/templates/:id/activate", "Activate Template", "Templates"),

	newDefinition("GET", "/v0/admin/cards", "List Generated Cards", "Cards"),

	newDefinition("GET", "/v0/admin/billing/subscription", "View Subscription", "Billing"),
	newDefinition("GET", "/v0/admin/billing/usage", "View Usage", "Billing"),
	newDefinition("POST", "/v0/admin/billing/subscribe", "Subscribe", "Billing"),
	newDefinition("GET", "/v0/admin/billing/transactions", "List Transactions", "Billing"),

	newDefinition("GET", "/v0/admin/me", "View Company", "Company"),
	newDefinition("GET", "/v0/admin/routes", "List Routes", "Company"),
}

// definitionMap provides fast lookup for route definitions.
var definitionMap = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}()
