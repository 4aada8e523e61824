package access

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"google.golang.org/api/iam/v1"

	"github.com/zostay/sdv-admin/pkg/config"
)

// The fixed names of the files each read operation writes.
const (
	UsersWithRolesFile = "Users_with_roles.json"
	UserInfoFile       = "User_info.json"
	RolesFile          = "Roles.json"
	UsersByRolesFile   = "Users_by_roles.json"
	RoleInfoFile       = "Role_info.json"
)

// Dumper writes operation results into files of an output directory.
type Dumper struct {
	dir    string
	format string
}

// NewDumper returns a Dumper writing into dir in the given format, either
// config.FormatJSON or config.FormatText.
func NewDumper(dir, format string) *Dumper {
	return &Dumper{dir: dir, format: format}
}

// Dump writes data into the named file and returns its path. Text output uses
// the same file name.
func (d *Dumper) Dump(name string, data any) (string, error) {
	path := filepath.Join(d.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %q: %w", path, err)
	}

	if d.format == config.FormatText {
		err = writeText(f, data)
	} else {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "    ")
		err = enc.Encode(data)
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write %q: %w", path, err)
	}

	return path, nil
}

// writeText writes one line per entry of data.
func writeText(w io.Writer, data any) error {
	var lines []string
	switch v := data.(type) {
	case map[string][]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, k+": "+strings.Join(v[k], ", "))
		}
	case []string:
		lines = v
	case []*iam.Role:
		for _, r := range v {
			lines = append(lines, r.Name+"\t"+r.Title)
		}
	case *iam.Role:
		lines = append(lines,
			"name: "+v.Name,
			"title: "+v.Title,
			"description: "+v.Description,
			"stage: "+v.Stage,
		)
		for _, p := range v.IncludedPermissions {
			lines = append(lines, "permission: "+p)
		}
	default:
		return fmt.Errorf("no text form for %T", data)
	}

	for _, l := range lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return err
		}
	}
	return nil
}
