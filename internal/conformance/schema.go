package conformance

// Suite is one YAML file of cases.
type Suite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Cases       []Case `yaml:"tests"`
}

// Case is one Brainfuck program and what running it must produce.
type Case struct {
	Name   string      `yaml:"name"`
	Source string      `yaml:"source"`
	Stdin  string      `yaml:"stdin,omitempty"`
	Skip   string      `yaml:"skip,omitempty"` // reason
	Expect Expectation `yaml:"expect"`
}

// Expectation is checked against a run. Empty fields are not checked.
type Expectation struct {
	Output string `yaml:"output,omitempty"` // exact stdout
	Bytes  []int  `yaml:"bytes,omitempty"`  // exact stdout as byte values
	Cells  []int  `yaml:"cells,omitempty"`  // tape prefix after the run
	Error  string `yaml:"error,omitempty"`  // extra_close | missing_close
}

// Error names used in Expectation.Error
const (
	ErrExtraClose   = "extra_close"
	ErrMissingClose = "missing_close"
)

// IsSkipped returns true if this case should be skipped
func (c *Case) IsSkipped() (bool, string) {
	if c.Skip != "" {
		return true, c.Skip
	}
	return false, ""
}

// WantsError reports whether the case expects compilation to fail.
func (c *Case) WantsError() bool {
	return c.Expect.Error != ""
}
