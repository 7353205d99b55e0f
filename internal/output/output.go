// Package output maps job records to their per-job text files and links.
package output

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ChuLiYu/murdock-reporter/internal/snapshot"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// Dir 所有任務輸出所在的子目錄
const Dir = "output"

// ErrUnsafePath 任務名稱會讓路徑離開輸出目錄
var ErrUnsafePath = errors.New("output: path escapes output directory")

// RelPath returns the slash-separated path of rec's text file relative to
// the report directory:
//
//	output/<type>/<application>/<target>:<toolchain>.txt  (structured)
//	output/<name>.txt                                     (everything else)
func RelPath(rec types.JobRecord) (string, error) {
	var p string
	if rec.Structured() {
		p = path.Join(Dir, string(rec.Type), rec.Application, rec.Target+":"+rec.Toolchain+".txt")
	} else {
		p = path.Join(Dir, rec.Name+".txt")
	}
	if !filepath.IsLocal(filepath.FromSlash(p)) || !strings.HasPrefix(p, Dir+"/") || rec.Name == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rec.Name)
	}
	return p, nil
}

// AppDir returns output/<type>/<application>.
func AppDir(t types.JobType, app string) (string, error) {
	p := path.Join(Dir, string(t), app)
	if app == "" || !filepath.IsLocal(filepath.FromSlash(p)) || !strings.HasPrefix(p, Dir+"/") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, app)
	}
	return p, nil
}

// Save writes rec's output below root and returns the relative path.
func Save(root string, rec types.JobRecord) (string, error) {
	rel, err := RelPath(rec)
	if err != nil {
		return "", err
	}
	if err := snapshot.WriteFile(filepath.Join(root, filepath.FromSlash(rel)), []byte(rec.Output)); err != nil {
		return "", err
	}
	return rel, nil
}

// Link joins the HTTP root and a relative path.
//
// A root with a URL scheme is joined as a URL; anything else becomes a
// rooted path.
func Link(root, rel string) string {
	if rel == "" {
		return ""
	}
	if u, err := url.Parse(root); err == nil && u.Scheme != "" && u.Host != "" {
		return u.JoinPath(rel).String()
	}
	return path.Join("/", root, rel)
}
