package config

// Output formats for the files written by the access commands.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Access configures the project IAM role binding commands.
type Access struct {
	Project   string `yaml:"project"`    // the GCP project id whose policy is managed
	OutputDir string `yaml:"output_dir"` // where result files get written
	Format    string `yaml:"format"`     // json or text
}

func (a *Access) prepare() {
	if a.OutputDir == "" {
		a.OutputDir = "."
	}
	if a.Format == "" {
		a.Format = FormatJSON
	}
}
