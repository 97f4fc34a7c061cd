package model

// Modules that permissions can be granted on. The set is closed.
const (
	ModuleDashboard   = "dashboard"
	ModuleProjects    = "projects"
	ModuleFinancial   = "financial"
	ModuleProcurement = "procurement"
	ModuleHRMS        = "hrms"
	ModuleCompliance  = "compliance"
	ModuleEInvoicing  = "einvoicing"
	ModuleReports     = "reports"
	ModuleAIAssistant = "ai_assistant"
	ModuleSettings    = "settings"
	ModuleAdmin       = "admin"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// AvailableModules is ordered as presented in the admin UI.
var AvailableModules = []string{
	ModuleDashboard,
	ModuleProjects,
	ModuleFinancial,
	ModuleProcurement,
	ModuleHRMS,
	ModuleCompliance,
	ModuleEInvoicing,
	ModuleReports,
	ModuleAIAssistant,
	ModuleSettings,
	ModuleAdmin,
}

var AvailableActions = []string{ActionView, ActionCreate, ActionEdit, ActionDelete}

func IsValidModule(module string) bool {
	for _, m := range AvailableModules {
		if m == module {
			return true
		}
	}
	return false
}

func IsValidAction(action string) bool {
	for _, a := range AvailableActions {
		if a == action {
			return true
		}
	}
	return false
}

// ActionSet holds the four CRUD flags for a single module.
type ActionSet struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

// FullAccess grants every action.
var FullAccess = ActionSet{View: true, Create: true, Edit: true, Delete: true}

// Allows reports whether the named action is granted. Unknown actions are denied.
func (a ActionSet) Allows(action string) bool {
	switch action {
	case ActionView:
		return a.View
	case ActionCreate:
		return a.Create
	case ActionEdit:
		return a.Edit
	case ActionDelete:
		return a.Delete
	}
	return false
}

// PermissionMatrix maps every module in AvailableModules to its ActionSet.
type PermissionMatrix map[string]ActionSet

// NewPermissionMatrix returns a matrix with every module present and every action denied.
func NewPermissionMatrix() PermissionMatrix {
	m := make(PermissionMatrix, len(AvailableModules))
	for _, module := range AvailableModules {
		m[module] = ActionSet{}
	}
	return m
}

// Allows reports whether action is granted on module.
func (m PermissionMatrix) Allows(module, action string) bool {
	set, ok := m[module]
	if !ok {
		return false
	}
	return set.Allows(action)
}
