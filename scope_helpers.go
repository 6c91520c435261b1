package inherit

const (
	// Recommended priorities for the canonical chain. Higher numbers win.
	ScopePrioritySystem  = 100
	ScopePriorityProject = 200
	ScopePriorityUser    = 300
)

// SystemProjectUser resolves the canonical three-layer chain
// (user over project over system).
func SystemProjectUser[T any](system, project, user T, opts ...Option) (*Resolved[T], error) {
	layers := []Layer[T]{
		NewLayer(NewScope("user", ScopePriorityUser, WithScopeLabel("User")), user),
		NewLayer(NewScope("project", ScopePriorityProject, WithScopeLabel("Project")), project),
		NewLayer(NewScope("system", ScopePrioritySystem, WithScopeLabel("System Defaults")), system),
	}
	stack, err := NewStack(layers...)
	if err != nil {
		return nil, err
	}
	return stack.Merge(opts...)
}
