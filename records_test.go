package inherit

// Hand-written records mirror what inheritgen emits.

type chainRecord struct {
	X Field[int] `json:"x,omitzero"`
	Y Field[int] `json:"y,omitzero"`
}

func (r chainRecord) Merge(parent chainRecord) chainRecord {
	var out chainRecord
	out.X = MergeValue(r.X, parent.X)
	out.Y = MergeValue(r.Y, parent.Y)
	return out
}

type serviceConfig struct {
	Name     Field[string]            `json:"name,omitzero"`
	Retries  Field[int]               `json:"retries,omitzero"`
	Region   Optional[string]         `json:"region,omitzero"`
	Labels   Field[map[string]string] `json:"labels,omitzero"`
	Limits   limitsConfig             `json:"limits"`
	Token    string                   `json:"token,omitempty"`
	Revision int                      `json:"-"`
}

func (c serviceConfig) Merge(parent serviceConfig) serviceConfig {
	var out serviceConfig
	out.Name = MergeValue(c.Name, parent.Name)
	out.Retries = MergeValue(c.Retries, parent.Retries)
	out.Region = MergeValue(c.Region, parent.Region)
	out.Labels = MergeValue(c.Labels, parent.Labels)
	out.Limits = MergeValue(c.Limits, parent.Limits)
	out.Token = Clone(c.Token)
	out.Revision = MergeValue(c.Revision, parent.Revision)
	return out
}

func (serviceConfig) Default() serviceConfig {
	var out serviceConfig
	DefaultInto(&out.Name)
	out.Retries = Set(3)
	DefaultInto(&out.Region)
	DefaultInto(&out.Labels)
	DefaultInto(&out.Limits)
	DefaultInto(&out.Token)
	DefaultInto(&out.Revision)
	return out
}

type limitsConfig struct {
	CPU    Field[float64] `json:"cpu,omitzero"`
	Memory Field[int]     `json:"memory,omitzero"`
}

func (l limitsConfig) Merge(parent limitsConfig) limitsConfig {
	var out limitsConfig
	out.CPU = MergeValue(l.CPU, parent.CPU)
	out.Memory = MergeValue(l.Memory, parent.Memory)
	return out
}
