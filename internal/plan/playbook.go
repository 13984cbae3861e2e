// Playbooks supply per-failure-class defaults for the synthesizer: canned
// hypotheses, verification commands, and actions an operator has vetted for
// a class of failures. The file is optional; built-in heuristics cover the
// rest.
package plan

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
)

// PlaybookAction is one remediation step template.
type PlaybookAction struct {
	Title string `yaml:"title"`
	Risk  string `yaml:"risk"`
}

// Playbook holds the defaults for one failure class.
type Playbook struct {
	Hypotheses     []string         `yaml:"hypotheses"`
	VerifyCommands []string         `yaml:"verify_commands"`
	Actions        []PlaybookAction `yaml:"actions"`
	DoneCriteria   []string         `yaml:"done_criteria"`
}

// PlaybookFile is the parsed playbooks.yaml.
type PlaybookFile struct {
	Playbooks map[string]Playbook `yaml:"playbooks"`
}

// LoadPlaybooks reads the playbook file at path. A missing file yields an
// empty set, not an error.
func LoadPlaybooks(path string) (*PlaybookFile, error) {
	if path == "" {
		return &PlaybookFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PlaybookFile{}, nil
		}
		return nil, errors.Wrap(errors.EInvalidConfig, "failed to read playbook file "+path, err)
	}
	var pf PlaybookFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, errors.Wrap(errors.EInvalidConfig, "failed to parse playbook file "+path, err)
	}
	return &pf, nil
}

// ForClass returns the playbook for a failure class, matching
// case-insensitively. Returns nil when no playbook covers the class.
func (pf *PlaybookFile) ForClass(failureClass string) *Playbook {
	if pf == nil || len(pf.Playbooks) == 0 {
		return nil
	}
	needle := strings.ToLower(strings.TrimSpace(failureClass))
	for class, pb := range pf.Playbooks {
		if strings.ToLower(class) == needle {
			copied := pb
			return &copied
		}
	}
	return nil
}

// Expand substitutes {incident_id}, {run_id}, {step}, {ym}, and {log_path}
// placeholders in a playbook template string.
func Expand(template string, vars map[string]string) string {
	out := template
	for key, val := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", val)
	}
	return out
}
