package completion

import (
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
)

// MaxPathLen is the longest path the disk completers produce.
const MaxPathLen = 4096

// UserDatabase resolves "~user" prefixes.
type UserDatabase interface {
	// HomeDir returns the home directory of user name, the current user
	// when name is empty.
	HomeDir(name string) (string, bool)
	// UserNames returns the names of every user.
	UserNames() []string
}

type osUserDatabase struct{}

func (osUserDatabase) HomeDir(name string) (string, bool) {
	var u *user.User
	var err error
	if name == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(name)
	}
	if err != nil {
		return "", false
	}
	return u.HomeDir, true
}

func (osUserDatabase) UserNames() []string {
	buf, err := os.ReadFile("/etc/passwd")
	if err != nil {
		return nil
	}
	var r []string
	for _, line := range strings.Split(string(buf), "\n") {
		if i := strings.IndexByte(line, ':'); i > 0 && !strings.HasPrefix(line, "#") {
			r = append(r, line[:i])
		}
	}
	return r
}

// Users is the user database used to complete "~user" prefixes.
var Users UserDatabase = osUserDatabase{}

// DiskFiles completes file and directory names. WordComplete is set unless
// a directory was matched.
func DiskFiles(c Context, partial string, req *Request, filter SearchFilter) int {
	n, sawDirectory := DiskFilesOrDirectories(partial, false, req)
	req.WordComplete = !sawDirectory
	return n
}

// DiskDirectories completes directory names.
func DiskDirectories(c Context, partial string, req *Request, filter SearchFilter) int {
	n, _ := DiskFilesOrDirectories(partial, true, req)
	req.WordComplete = false
	return n
}

// DiskFilesOrDirectories adds to req the files (or only the directories)
// whose path starts with partial. Matches keep the form typed by the user,
// directories are followed by a slash. The second return value is true if
// a directory was matched.
func DiskFilesOrDirectories(partial string, onlyDirectories bool, req *Request) (int, bool) {
	if len(partial) >= MaxPathLen {
		return 0, false
	}

	var typedDir, remainder, containing string
	slash := strings.LastIndexByte(partial, '/')
	switch {
	case slash < 0 && strings.HasPrefix(partial, "~"):
		return completeUserNames(partial, req)
	case slash < 0:
		containing = "."
		remainder = partial
	case slash == 0:
		containing = "/"
		typedDir = "/"
		remainder = partial[1:]
	default:
		containing = partial[:slash]
		typedDir = partial[:slash+1]
		remainder = partial[slash+1:]
	}

	if strings.HasPrefix(containing, "~") {
		name, rest := containing[1:], ""
		if i := strings.IndexByte(name, '/'); i >= 0 {
			name, rest = name[:i], name[i:]
		}
		home, ok := Users.HomeDir(name)
		if !ok {
			return 0, false
		}
		containing = home + rest
	}

	entries, err := os.ReadDir(containing)
	if err != nil {
		return 0, false
	}

	n, sawDirectory := 0, false
	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(remainder, ".") {
			continue
		}
		if !strings.HasPrefix(name, remainder) {
			continue
		}
		if len(typedDir)+len(name) >= MaxPathLen {
			continue
		}

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if fi, err := os.Stat(filepath.Join(containing, name)); err == nil && fi.IsDir() {
				isDir = true
			}
		}

		match := typedDir + name
		if isDir {
			sawDirectory = true
			match += "/"
		} else if onlyDirectories {
			continue
		}
		req.AddMatch(match)
		n++
	}
	return n, sawDirectory
}

func completeUserNames(partial string, req *Request) (int, bool) {
	name := partial[1:]
	if _, ok := Users.HomeDir(name); ok {
		req.AddMatch(partial + "/")
		return 1, true
	}
	set := map[string]bool{}
	for _, u := range Users.UserNames() {
		if strings.HasPrefix(u, name) {
			set["~"+u+"/"] = true
		}
	}
	names := make([]string, 0, len(set))
	for s := range set {
		names = append(names, s)
	}
	sort.Strings(names)
	for _, s := range names {
		req.AddMatch(s)
	}
	return len(names), len(names) > 0
}
