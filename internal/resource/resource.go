// package resource loads response bodies from the resources directory.
package resource

import (
	"errors"
	"io/fs"
	"os"
)

// FileNotFoundError means a route references a resource file that does not
// exist. It is a configuration error, the connection it happens on gets a
// 500 response.
type FileNotFoundError struct {
	Name string
	error
}

func (e *FileNotFoundError) Error() string {
	msg := "resource file not found: " + e.Name
	if e.error != nil {
		msg += ", error: " + e.error.Error()
	}
	return msg
}

func (e *FileNotFoundError) Unwrap() error {
	return e.error
}

type Loader struct {
	fsys fs.FS
}

func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// Dir is a shortcut for NewLoader(os.DirFS(dir))
func Dir(dir string) *Loader {
	return NewLoader(os.DirFS(dir))
}

// Load reads the whole file every time it is called, so resources may be
// edited while the server runs.
func (l *Loader) Load(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &FileNotFoundError{name, fs.ErrInvalid}
	}
	b, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{name, err}
		}
		return nil, err
	}
	return b, nil
}

// Check returns the names that can not currently be loaded
func (l *Loader) Check(names ...string) (missing []string) {
	for _, name := range names {
		if !fs.ValidPath(name) {
			missing = append(missing, name)
			continue
		}
		if st, err := fs.Stat(l.fsys, name); err != nil || st.IsDir() {
			missing = append(missing, name)
		}
	}
	return
}
