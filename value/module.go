package value

// ModuleObj is a name plus its own Environment, exposed as a first-class
// value. Returned by IMPORT and by the module loader.
type ModuleObj struct {
	ObjectHeader
	Name string
	Path string // canonical filesystem path this module was loaded from
	Env  *EnvironmentObj
}

func (m *ModuleObj) Header() *ObjectHeader { return &m.ObjectHeader }

func NewModule(name, path string, env *EnvironmentObj) *ModuleObj {
	return &ModuleObj{Name: name, Path: path, Env: env}
}

// GetMember looks up name in the module's Environment variable bindings,
// walking its parent chain, so a registered native also resolves as a member.
// Undefined is fatal — callers convert a false return into a NameError.
func (m *ModuleObj) GetMember(key *StringObj) (Value, bool) {
	return m.Env.GetVariable(key)
}
